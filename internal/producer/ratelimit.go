package producer

import (
	"sync"
	"time"

	"github.com/trustmesh/agentmarket/internal/types"
)

// bucketKey identifies one (consumerAgentId, productId) rate-limit bucket.
func bucketKey(consumerAgentID, productID string) string {
	return consumerAgentID + "\x00" + productID
}

// RateLimiter tracks a fixed-window call count per (consumerAgentId,
// productId) pair, each bucket mutated only under its own lock so that
// concurrent requests against different consumers never contend (spec §5).
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*lockedBucket
}

type lockedBucket struct {
	mu               sync.Mutex
	bucket           types.RateLimitBucket
	exceededThisWindow bool
}

// NewRateLimiter builds an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*lockedBucket)}
}

// Allow checks and, if permitted, increments the bucket for
// (consumerAgentId, productId) under limit. It returns whether the call is
// allowed, the seconds remaining in the current window, and whether this
// bucket was also exceeded in the immediately preceding window (used to
// decide whether to emit a RATE_LIMIT_VIOLATION audit event).
func (r *RateLimiter) Allow(consumerAgentID, productID string, limit types.RateLimit, now time.Time) (allowed bool, retryAfter int, consecutiveViolation bool) {
	key := bucketKey(consumerAgentID, productID)

	r.mu.Lock()
	lb, ok := r.buckets[key]
	if !ok {
		lb = &lockedBucket{bucket: types.RateLimitBucket{
			WindowStart:   now,
			LimitCalls:    limit.Calls,
			PeriodSeconds: limit.PeriodSeconds,
		}}
		r.buckets[key] = lb
	}
	r.mu.Unlock()

	lb.mu.Lock()
	defer lb.mu.Unlock()

	b := &lb.bucket
	windowEnd := b.WindowStart.Add(time.Duration(b.PeriodSeconds) * time.Second)
	if !now.Before(windowEnd) {
		if lb.exceededThisWindow {
			b.ExceededStreak++
		} else {
			b.ExceededStreak = 0
		}
		b.WindowStart = now
		b.Count = 0
		b.LimitCalls = limit.Calls
		b.PeriodSeconds = limit.PeriodSeconds
		lb.exceededThisWindow = false
	}

	if b.Count >= b.LimitCalls {
		lb.exceededThisWindow = true
		return false, b.SecondsUntilWindowEnd(now), b.ExceededStreak >= 1
	}

	b.Count++
	return true, 0, false
}
