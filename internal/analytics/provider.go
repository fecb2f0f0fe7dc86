// Package analytics wraps the upstream ledger-analytics provider (an
// external collaborator; only its interface is specified here) with the
// cache, retry, and circuit-breaker policy that makes its use idempotent and
// bounded from the producer's perspective.
package analytics

import (
	"context"
	"time"

	"github.com/trustmesh/agentmarket/internal/types"
)

// FailureKind is the taxonomy an upstream call can fail with.
type FailureKind string

const (
	Unavailable FailureKind = "unavailable"
	RateLimited FailureKind = "rate_limited"
	NotFound    FailureKind = "not_found"
	Invalid     FailureKind = "invalid"
	Internal    FailureKind = "internal"
)

// Error is the typed failure returned by a Provider call.
type Error struct {
	Kind       FailureKind
	RetryAfter time.Duration
	Message    string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// Terminal reports whether retrying this failure is pointless.
func (e *Error) Terminal() bool {
	return e.Kind == NotFound || e.Kind == Invalid
}

// AccountInfo is the subset of account metadata the scoring engine needs.
type AccountInfo struct {
	Account   types.AccountId
	CreatedAt time.Time
}

// Transaction is one observed transfer touching the account.
type Transaction struct {
	Timestamp    time.Time
	Counterparty string
	// Amount is signed in smallest-unit terms: positive is inflow, negative
	// is outflow.
	Amount int64
}

// TokenBalance is one token holding.
type TokenBalance struct {
	TokenID string
	Balance uint64
}

// TopicMessage is one HCS-style consensus message touching the account.
type TopicMessage struct {
	TopicID   string
	Timestamp time.Time
}

// Provider is the external analytics source's interface.
type Provider interface {
	AccountInfo(ctx context.Context, id types.AccountId) (AccountInfo, error)
	Transactions(ctx context.Context, id types.AccountId, limit int) ([]Transaction, error)
	TokenBalances(ctx context.Context, id types.AccountId) ([]TokenBalance, error)
	TopicMessages(ctx context.Context, id types.AccountId, topicFilter []string) ([]TopicMessage, error)
}
