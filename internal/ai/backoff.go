package ai

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// newBackoff returns the delay schedule for one strategy run: base, 2×base,
// 3×base... capped at maxDelay, stopping after maxAttempts-1 retries.
func newBackoff(base, maxDelay time.Duration, maxAttempts int) retry.Backoff {
	var n int64
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * base, false
	})

	b := retry.Backoff(linear)
	if maxDelay > 0 {
		b = retry.WithCappedDuration(maxDelay, b)
	}
	retries := maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
