package queue

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// BackoffFunc returns the delay before retry number attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles base on every attempt and caps the result at maxDelay.
func ExponentialBackoff(base, maxDelay time.Duration) BackoffFunc {
	if base <= 0 {
		base = 30 * time.Second
	}
	return func(attempt int) time.Duration {
		b := retry.NewExponential(base)
		if maxDelay > 0 {
			b = retry.WithCappedDuration(maxDelay, b)
		}
		var d time.Duration
		for range max(attempt, 1) {
			d, _ = b.Next()
		}
		return d
	}
}
