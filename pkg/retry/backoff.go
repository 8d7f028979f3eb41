package retry

import (
	"context"
	"math/rand"
	"time"
)

// Backoff returns the pause before retrying after failed attempt n (1-based)
type Backoff func(attempt int) time.Duration

// Constant pauses d after every failed attempt
func Constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Doubling pauses base after the first failure and twice as long after
// each further one, capped at max. jitter spreads every pause by up to
// that fraction in either direction so workers do not retry in lockstep.
func Doubling(base, max time.Duration, jitter float64) Backoff {
	return func(attempt int) time.Duration {
		if attempt <= 0 || base <= 0 {
			return 0
		}
		delay := base
		for i := 1; i < attempt && delay < max; i++ {
			delay *= 2
		}
		if delay > max {
			delay = max
		}
		if jitter > 0 {
			spread := float64(delay) * jitter
			delay += time.Duration(spread * (2*rand.Float64() - 1))
		}
		if delay < 0 {
			return 0
		}
		return delay
	}
}

// Wait sleeps for delay or until ctx is done, whichever comes first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
