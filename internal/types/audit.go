package types

// AuditEventType enumerates the tagged-variant audit events the orchestrator
// publishes to the append-only log topic.
type AuditEventType string

const (
	EventNegotiationStarted   AuditEventType = "NEGOTIATION_STARTED"
	EventNegotiationAgreed    AuditEventType = "NEGOTIATION_AGREED"
	EventComputationRequested AuditEventType = "COMPUTATION_REQUESTED"
	EventScoreDelivered       AuditEventType = "SCORE_DELIVERED"
	EventPaymentVerified      AuditEventType = "PAYMENT_VERIFIED"
	EventRateLimitViolation   AuditEventType = "RATE_LIMIT_VIOLATION"
	EventConnectionTerminated AuditEventType = "CONNECTION_TERMINATED"
)

// AuditEvent is one immutable entry submitted to the audit topic.
type AuditEvent struct {
	Type      AuditEventType         `json:"type"`
	EventID   string                 `json:"eventId"`
	Timestamp int64                  `json:"timestamp"` // epoch-ms
	Data      map[string]interface{} `json:"data"`

	// OrchestratorID is stamped by the orchestrator's AuditLog when it logs
	// the event, not by the caller.
	OrchestratorID string `json:"orchestratorId,omitempty"`
}
