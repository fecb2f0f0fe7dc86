package producer

import (
	"context"

	"github.com/trustmesh/agentmarket/internal/analytics"
	"github.com/trustmesh/agentmarket/internal/scoring"
	"github.com/trustmesh/agentmarket/internal/types"
)

const transactionLimit = 500

// assembleBundle calls every analytics method for account and folds the
// results into a scoring.Bundle, marking any failed component unavailable
// rather than failing the whole request (spec §4.3 "Partial C2 output").
func assembleBundle(ctx context.Context, src AnalyticsSource, account types.AccountId, topicFilter []string) scoring.Bundle {
	var bundle scoring.Bundle

	if info, stale, err := src.AccountInfo(ctx, account); err == nil {
		bundle.AccountInfo = &info
		bundle.AccountInfoAvailable = true
		bundle.AnyStale = bundle.AnyStale || stale
	}

	if txs, stale, err := src.Transactions(ctx, account, transactionLimit); err == nil {
		bundle.Transactions = txs
		bundle.TransactionsAvailable = true
		bundle.AnyStale = bundle.AnyStale || stale
	}

	if balances, stale, err := src.TokenBalances(ctx, account); err == nil {
		bundle.TokenBalances = balances
		bundle.TokenBalancesAvailable = true
		bundle.AnyStale = bundle.AnyStale || stale
	}

	if msgs, stale, err := src.TopicMessages(ctx, account, topicFilter); err == nil {
		bundle.TopicMessages = msgs
		bundle.TopicMessagesAvailable = true
		bundle.AnyStale = bundle.AnyStale || stale
	}

	return bundle
}

// allComponentsUnavailable reports whether every analytics input failed,
// meaning the producer has nothing to score from and must fail the request
// instead of returning an all-zero score.
func allComponentsUnavailable(b scoring.Bundle) bool {
	return !b.AccountInfoAvailable && !b.TransactionsAvailable && !b.TokenBalancesAvailable && !b.TopicMessagesAvailable
}

// firstUnavailableErr re-runs AccountInfo's error (the canonical signal for
// "is the provider actually down") so the handler can distinguish a
// provider outage from a genuinely empty-but-reachable account.
func firstUnavailableErr(ctx context.Context, src AnalyticsSource, account types.AccountId) error {
	_, _, err := src.AccountInfo(ctx, account)
	return err
}

func isUnavailable(err error) bool {
	aerr, ok := err.(*analytics.Error)
	return ok && aerr.Kind == analytics.Unavailable
}
