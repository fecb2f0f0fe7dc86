package audit

import (
	"context"
	"sync"

	"github.com/trustmesh/agentmarket/internal/types"
)

// MemoryPublisher is an in-process Publisher the orchestrator binary falls
// back to when no Redis address is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []types.AuditEvent
}

// NewMemoryPublisher builds an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends event to the in-memory log in submission order.
func (p *MemoryPublisher) Publish(ctx context.Context, topic string, event types.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything published so far, in submission order.
func (p *MemoryPublisher) Events() []types.AuditEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.AuditEvent, len(p.events))
	copy(out, p.events)
	return out
}
