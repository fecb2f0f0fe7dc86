package types

import "time"

// DefaultRateLimit applies whenever a consumer has no negotiated rate limit:
// 100 calls per 86400 seconds (24h).
var DefaultRateLimit = RateLimit{Calls: 100, PeriodSeconds: 86400}

// RateLimitBucket tracks call counts for one (consumerAgentId, productId)
// pair within a fixed window. Owned exclusively by the producer and mutated
// only under its lock.
type RateLimitBucket struct {
	WindowStart    time.Time
	Count          int
	LimitCalls     int
	PeriodSeconds  int
	ExceededStreak int // consecutive windows in which the bucket was exceeded
}

// SecondsUntilWindowEnd returns the whole seconds remaining in the current
// window as of now plus one, so that waiting that long always reaches the
// next window; it returns zero once now is past the window end.
func (b *RateLimitBucket) SecondsUntilWindowEnd(now time.Time) int {
	end := b.WindowStart.Add(time.Duration(b.PeriodSeconds) * time.Second)
	remaining := end.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}
