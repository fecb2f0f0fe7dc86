package analytics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/agentmarket/internal/types"
)

type flakyProvider struct {
	accountInfoCalls int32
	fail             atomic.Bool
}

func (p *flakyProvider) AccountInfo(ctx context.Context, id types.AccountId) (AccountInfo, error) {
	atomic.AddInt32(&p.accountInfoCalls, 1)
	if p.fail.Load() {
		return AccountInfo{}, &Error{Kind: Unavailable, Message: "down"}
	}
	return AccountInfo{Account: id, CreatedAt: time.Now()}, nil
}

func (p *flakyProvider) Transactions(ctx context.Context, id types.AccountId, limit int) ([]Transaction, error) {
	return nil, nil
}
func (p *flakyProvider) TokenBalances(ctx context.Context, id types.AccountId) ([]TokenBalance, error) {
	return nil, nil
}
func (p *flakyProvider) TopicMessages(ctx context.Context, id types.AccountId, topicFilter []string) ([]TopicMessage, error) {
	return nil, nil
}

// TestCircuitBreaker_OpensAfterFiveFailures covers property 16: after 5
// consecutive terminal failures the breaker fails fast without contacting
// upstream, then recovers after the timeout.
func TestCircuitBreaker_OpensAfterFiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(5, 50*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.True(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow(), "breaker must fail fast once open")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow(), "breaker must allow a probe once timeout elapses")
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 10*time.Millisecond)
	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestClient_StaleFallbackOnUpstreamOutage(t *testing.T) {
	provider := &flakyProvider{}
	client := NewClient(provider, nil)

	ctx := context.Background()
	id := types.AccountId("0.0.2")

	_, stale, err := client.AccountInfo(ctx, id)
	require.NoError(t, err)
	assert.False(t, stale)

	provider.fail.Store(true)

	// Age the cached entry past its TTL so the next call goes upstream
	// instead of being served as a fresh hit.
	for k, e := range client.accountInfoCache.entries {
		e.insertedAt = time.Now().Add(-2 * cacheTTL)
		client.accountInfoCache.entries[k] = e
	}

	_, stale, err = client.AccountInfo(ctx, id)
	require.NoError(t, err, "a prior cache entry must be served stale rather than erroring")
	assert.True(t, stale)
}

func TestClient_NoCacheAndUnavailable_ReturnsError(t *testing.T) {
	provider := &flakyProvider{}
	provider.fail.Store(true)
	client := NewClient(provider, nil)

	_, _, err := client.AccountInfo(context.Background(), types.AccountId("0.0.99999"))
	require.Error(t, err)
}

// TestTripsBreaker_OnlyUnavailableAndInternal covers spec §4.1: a
// RateLimited failure must never count toward the breaker's
// consecutive-failure threshold, only Unavailable/Internal do.
func TestTripsBreaker_OnlyUnavailableAndInternal(t *testing.T) {
	assert.True(t, tripsBreaker(&Error{Kind: Unavailable}))
	assert.True(t, tripsBreaker(&Error{Kind: Internal}))
	assert.False(t, tripsBreaker(&Error{Kind: RateLimited}))
	assert.False(t, tripsBreaker(&Error{Kind: NotFound}))
	assert.False(t, tripsBreaker(&Error{Kind: Invalid}))
	assert.False(t, tripsBreaker(nil))
}
