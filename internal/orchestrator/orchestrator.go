package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/audit"
	"github.com/trustmesh/agentmarket/internal/ledger"
	"github.com/trustmesh/agentmarket/internal/types"
)

// Orchestrator is the façade producers and consumers depend on: agent
// registry, task table, audit log, and receipt verification, composed
// behind a single handle so that no two agents ever hold a direct reference
// to one another (spec §9).
type Orchestrator struct {
	Registry *Registry
	Tasks    *TaskTable
	audit    *AuditLog
	receipts *ReceiptVerifier
	logger   *zap.Logger
}

// Config wires an Orchestrator's collaborators.
type Config struct {
	ID         string
	Dialer     ChannelDialer
	Publisher  audit.Publisher
	AuditTopic string
	Mirror     ledger.MirrorClient
	Logger     *zap.Logger
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Registry: NewRegistry(cfg.Dialer),
		Tasks:    NewTaskTable(),
		audit:    NewAuditLog(cfg.Publisher, cfg.AuditTopic, cfg.ID, logger),
		receipts: NewReceiptVerifier(cfg.Mirror, logger),
		logger:   logger,
	}
}

// RegisterAgent registers an agent. Registration itself carries no dedicated
// audit event type in the append-only log (spec §4.5's seven variants cover
// negotiation, computation, delivery, payment, rate limiting, and connection
// loss, not registration).
func (o *Orchestrator) RegisterAgent(ctx context.Context, agentID string, role types.AgentRole, capabilities []string) types.AgentRegistration {
	return o.Registry.Register(agentID, role, capabilities)
}

// IssueTask issues a task and emits a COMPUTATION_REQUESTED audit event.
func (o *Orchestrator) IssueTask(ctx context.Context, consumerID string, accountID types.AccountId, taskType string) *types.Task {
	task := o.Tasks.IssueTask(consumerID, accountID, taskType)
	o.audit.LogEvent(ctx, types.EventComputationRequested, map[string]interface{}{
		"task_id":     task.TaskID,
		"consumer_id": consumerID,
		"account_id":  string(accountID),
	})
	return task
}

// CompleteTask moves a task through in_progress to completed with its
// result and emits a SCORE_DELIVERED audit event carrying the full delivery
// context (spec §4.3 step 6). A task is always pending when work on it
// starts, so CompleteTask passes it through in_progress itself rather than
// requiring a separate start call.
func (o *Orchestrator) CompleteTask(ctx context.Context, taskID string, result *types.TrustScore, delivery types.ScoreDelivery) error {
	if err := o.Tasks.UpdateStatus(taskID, types.TaskInProgress, nil, ""); err != nil {
		return err
	}
	if err := o.Tasks.UpdateStatus(taskID, types.TaskCompleted, result, ""); err != nil {
		return err
	}
	o.audit.LogEvent(ctx, types.EventScoreDelivered, map[string]interface{}{
		"task_id":           taskID,
		"buyer_agent_id":    delivery.BuyerAgentID,
		"producer_agent_id": delivery.ProducerAgentID,
		"account_id":        string(delivery.AccountID),
		"score":             delivery.Score,
		"transaction_id":    delivery.TransactionID,
		"amount":            delivery.Amount,
	})
	return nil
}

// FailTask moves a task through in_progress to failed with an error message,
// for the same reason CompleteTask does.
func (o *Orchestrator) FailTask(ctx context.Context, taskID string, taskErr string) error {
	if err := o.Tasks.UpdateStatus(taskID, types.TaskInProgress, nil, ""); err != nil {
		return err
	}
	return o.Tasks.UpdateStatus(taskID, types.TaskFailed, nil, taskErr)
}

// VerifyPaymentReceipt confirms a settled payment against the ledger mirror
// node and emits a PAYMENT_VERIFIED audit event when it matches.
func (o *Orchestrator) VerifyPaymentReceipt(ctx context.Context, transactionID, expectedAmount, expectedRecipient string) bool {
	ok := o.receipts.VerifyPaymentReceipt(ctx, transactionID, expectedAmount, expectedRecipient)
	if ok {
		o.audit.LogEvent(ctx, types.EventPaymentVerified, map[string]interface{}{
			"transaction_id": transactionID,
			"amount":         expectedAmount,
			"recipient":      expectedRecipient,
		})
	}
	return ok
}

// LogNegotiationStarted emits a NEGOTIATION_STARTED audit event.
func (o *Orchestrator) LogNegotiationStarted(ctx context.Context, productID, buyerAgentID string) {
	o.audit.LogEvent(ctx, types.EventNegotiationStarted, map[string]interface{}{
		"product_id":     productID,
		"buyer_agent_id": buyerAgentID,
	})
}

// LogRateLimitViolation emits a RATE_LIMIT_VIOLATION audit event.
func (o *Orchestrator) LogRateLimitViolation(ctx context.Context, accountID types.AccountId, productID string) {
	o.audit.LogEvent(ctx, types.EventRateLimitViolation, map[string]interface{}{
		"account_id": string(accountID),
		"product_id": productID,
	})
}

// DeadLetters returns audit events that could not be published after one
// retry.
func (o *Orchestrator) DeadLetters() []types.AuditEvent {
	return o.audit.DeadLetters()
}
