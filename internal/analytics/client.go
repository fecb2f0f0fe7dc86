package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/trustmesh/agentmarket/internal/types"
)

var (
	upstreamCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_upstream_calls_total",
		Help: "Upstream analytics provider calls by method and outcome.",
	}, []string{"method", "outcome"})

	breakerStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "analytics_circuit_breaker_open",
		Help: "1 if the analytics circuit breaker is open, 0 otherwise.",
	})
)

// Client wraps a Provider with caching, retry, and circuit-breaking so every
// caller gets idempotent, bounded access to upstream analytics.
type Client struct {
	provider Provider
	logger   *zap.Logger
	breaker  *CircuitBreaker

	accountInfoCache    *cache
	transactionsCache   *cache
	tokenBalancesCache  *cache
	topicMessagesCache  *cache
}

// NewClient wraps provider with the standard cache/retry/circuit-breaker
// policy: breaker opens after 5 consecutive terminal failures for 60s.
func NewClient(provider Provider, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider:           provider,
		logger:             logger,
		breaker:            NewCircuitBreaker(5, 60*time.Second),
		accountInfoCache:   newCache(),
		transactionsCache:  newCache(),
		tokenBalancesCache: newCache(),
		topicMessagesCache: newCache(),
	}
}

// BreakerState exposes the circuit breaker's current state for health and
// metrics surfaces.
func (c *Client) BreakerState() CircuitState {
	s := c.breaker.State()
	if s == CircuitOpen {
		breakerStateGauge.Set(1)
	} else {
		breakerStateGauge.Set(0)
	}
	return s
}

func (c *Client) AccountInfo(ctx context.Context, id types.AccountId) (AccountInfo, bool, error) {
	fingerprint := "account_info:" + string(id)
	v, stale, err := c.call(ctx, "account_info", fingerprint, c.accountInfoCache, func() (interface{}, error) {
		return c.provider.AccountInfo(ctx, id)
	})
	if err != nil {
		return AccountInfo{}, false, err
	}
	return v.(AccountInfo), stale, nil
}

func (c *Client) Transactions(ctx context.Context, id types.AccountId, limit int) ([]Transaction, bool, error) {
	fingerprint := fmt.Sprintf("transactions:%s:%d", id, limit)
	v, stale, err := c.call(ctx, "transactions", fingerprint, c.transactionsCache, func() (interface{}, error) {
		return c.provider.Transactions(ctx, id, limit)
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]Transaction), stale, nil
}

func (c *Client) TokenBalances(ctx context.Context, id types.AccountId) ([]TokenBalance, bool, error) {
	fingerprint := "token_balances:" + string(id)
	v, stale, err := c.call(ctx, "token_balances", fingerprint, c.tokenBalancesCache, func() (interface{}, error) {
		return c.provider.TokenBalances(ctx, id)
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]TokenBalance), stale, nil
}

func (c *Client) TopicMessages(ctx context.Context, id types.AccountId, topicFilter []string) ([]TopicMessage, bool, error) {
	fingerprint := fmt.Sprintf("topic_messages:%s:%v", id, topicFilter)
	v, stale, err := c.call(ctx, "topic_messages", fingerprint, c.topicMessagesCache, func() (interface{}, error) {
		return c.provider.TopicMessages(ctx, id, topicFilter)
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]TopicMessage), stale, nil
}

// tripsBreaker reports whether err counts toward the breaker's
// consecutive-failure threshold. Only Unavailable/Internal count (spec
// §4.1); a RateLimited failure means the upstream is reachable and
// responding, so it must not.
func tripsBreaker(err error) bool {
	analyticsErr, ok := err.(*Error)
	return ok && (analyticsErr.Kind == Unavailable || analyticsErr.Kind == Internal)
}

// call applies cache, circuit-breaker, and retry policy around a single
// upstream method invocation.
func (c *Client) call(ctx context.Context, method, fingerprint string, ch *cache, fn func() (interface{}, error)) (interface{}, bool, error) {
	if v, ok := ch.freshHit(fingerprint); ok {
		upstreamCallsTotal.WithLabelValues(method, "cache_hit").Inc()
		return v, false, nil
	}

	if !c.breaker.Allow() {
		upstreamCallsTotal.WithLabelValues(method, "breaker_open").Inc()
		if v, ok := ch.anyHit(fingerprint); ok {
			c.logger.Warn("analytics circuit open, serving stale cache", zap.String("method", method))
			return v, true, nil
		}
		return nil, false, &Error{Kind: Unavailable, Message: "circuit breaker open"}
	}

	result, err := retryWithBackoff(ctx, fn)
	if err == nil {
		c.breaker.RecordSuccess()
		ch.put(fingerprint, result)
		upstreamCallsTotal.WithLabelValues(method, "success").Inc()
		return result, false, nil
	}

	if tripsBreaker(err) {
		c.breaker.RecordFailure()
	}

	upstreamCallsTotal.WithLabelValues(method, "failure").Inc()

	if v, ok := ch.anyHit(fingerprint); ok {
		c.logger.Warn("analytics upstream failed, serving stale cache",
			zap.String("method", method), zap.Error(err))
		return v, true, nil
	}

	return nil, false, err
}
