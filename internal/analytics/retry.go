package analytics

import (
	"context"
	"time"
)

// backoffSchedule is the fixed exponential backoff spec §4.1 prescribes:
// 1s, 2s, 4s between up to 3 retries.
var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// retryWithBackoff runs fn up to len(backoffSchedule)+1 times. A RateLimited
// failure waits out the provider-supplied retry-after and is retried once
// without consuming an attempt from the backoff budget. NotFound and Invalid
// are terminal and returned immediately.
func retryWithBackoff(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	waitedOnRateLimit := false

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		analyticsErr, ok := err.(*Error)
		if !ok {
			return nil, err
		}

		if analyticsErr.Terminal() {
			return nil, err
		}

		if analyticsErr.Kind == RateLimited && !waitedOnRateLimit {
			waitedOnRateLimit = true
			if sleepErr := sleepCtx(ctx, analyticsErr.RetryAfter); sleepErr != nil {
				return nil, sleepErr
			}
			attempt-- // the rate-limit wait does not consume a backoff attempt
			continue
		}

		if attempt >= len(backoffSchedule) {
			return nil, err
		}

		if sleepErr := sleepCtx(ctx, backoffSchedule[attempt]); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
