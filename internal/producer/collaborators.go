package producer

import (
	"context"

	"github.com/trustmesh/agentmarket/internal/analytics"
	"github.com/trustmesh/agentmarket/internal/types"
)

// Mesh is the narrow view of the orchestrator the producer talks to. The
// producer never holds a direct reference to the orchestrator's internal
// registry or task table, only this interface (spec §9 no-cyclic-ownership
// design note).
type Mesh interface {
	IssueTask(ctx context.Context, consumerID string, accountID types.AccountId, taskType string) *types.Task
	CompleteTask(ctx context.Context, taskID string, result *types.TrustScore, delivery types.ScoreDelivery) error
	FailTask(ctx context.Context, taskID string, taskErr string) error
	VerifyPaymentReceipt(ctx context.Context, transactionID, expectedAmount, expectedRecipient string) bool
	LogNegotiationStarted(ctx context.Context, productID, buyerAgentID string)
	LogRateLimitViolation(ctx context.Context, accountID types.AccountId, productID string)
}

// AnalyticsSource is the subset of analytics.Client the producer calls to
// assemble a scoring bundle.
type AnalyticsSource interface {
	AccountInfo(ctx context.Context, id types.AccountId) (analytics.AccountInfo, bool, error)
	Transactions(ctx context.Context, id types.AccountId, limit int) ([]analytics.Transaction, bool, error)
	TokenBalances(ctx context.Context, id types.AccountId) ([]analytics.TokenBalance, bool, error)
	TopicMessages(ctx context.Context, id types.AccountId, topicFilter []string) ([]analytics.TopicMessage, bool, error)
}
