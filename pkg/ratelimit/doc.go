// Package ratelimit paces outgoing API requests.
//
// RateLimiter wraps golang.org/x/time/rate. Every worker gets its own
// instance so that one worker's bursts never delay another's:
//
//	limiter := ratelimit.New(cfg.RateLimit)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// Unlimited is a Limiter that never blocks, for tests and local mocks.
package ratelimit
