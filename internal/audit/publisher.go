// Package audit publishes AuditEvents to the append-only log topic. The
// consensus-topic transport itself is an external collaborator (spec §1);
// this package defines the Publisher interface plus a Redis-backed
// implementation that stands in for it.
package audit

import (
	"context"

	"github.com/trustmesh/agentmarket/internal/types"
)

// Publisher appends one serialized AuditEvent to the configured topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event types.AuditEvent) error
}
