package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trustmesh/agentmarket/internal/types"
)

// RedisPublisher appends audit events to a Redis stream, one JSON message
// per AuditEvent, grounded on the corpus's Redis-backed queue idiom.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher builds a publisher against addr.
func NewRedisPublisher(addr, password string, db int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisPublisher{client: client}
}

// Close releases the underlying Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Publish appends event as a single message to topic's stream, preserving
// submission order for a single call site (Redis streams are append-only
// and ordered per key).
func (p *RedisPublisher) Publish(ctx context.Context, topic string, event types.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{"event": payload},
	}).Err()
}
