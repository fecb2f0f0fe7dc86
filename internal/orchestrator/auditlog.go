package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/audit"
	"github.com/trustmesh/agentmarket/internal/types"
)

// AuditLog stamps and publishes AuditEvents, retrying a failed publish at
// most once before dropping the event to a local dead-letter list. Failures
// never propagate to the caller (spec §4.5).
type AuditLog struct {
	publisher      audit.Publisher
	topic          string
	orchestratorID string
	logger         *zap.Logger

	mu          sync.Mutex
	deadLetters []types.AuditEvent
}

// NewAuditLog builds an audit log that publishes to topic through publisher.
func NewAuditLog(publisher audit.Publisher, topic, orchestratorID string, logger *zap.Logger) *AuditLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLog{
		publisher:      publisher,
		topic:          topic,
		orchestratorID: orchestratorID,
		logger:         logger,
	}
}

// LogEvent stamps eventId/timestamp/orchestratorId and appends the event to
// the topic. Submissions from a single call site reach the log topic in
// submission order because LogEvent itself does not fan out; callers that
// need ordering across a sequence invoke LogEvent sequentially.
func (a *AuditLog) LogEvent(ctx context.Context, eventType types.AuditEventType, data map[string]interface{}) {
	event := types.AuditEvent{
		Type:           eventType,
		EventID:        uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
		Data:           data,
		OrchestratorID: a.orchestratorID,
	}

	if err := a.publisher.Publish(ctx, a.topic, event); err != nil {
		a.logger.Warn("audit publish failed, retrying once",
			zap.String("event_type", string(eventType)), zap.Error(err))

		if err := a.publisher.Publish(ctx, a.topic, event); err != nil {
			a.logger.Error("audit publish failed twice, dropping to dead-letter list",
				zap.String("event_type", string(eventType)), zap.Error(err))
			a.mu.Lock()
			a.deadLetters = append(a.deadLetters, event)
			a.mu.Unlock()
		}
	}
}

// DeadLetters returns a snapshot of events that could not be published after
// one retry.
func (a *AuditLog) DeadLetters() []types.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.AuditEvent, len(a.deadLetters))
	copy(out, a.deadLetters)
	return out
}
