package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"ttscraper/pkg/config"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the full burst
	Reset()
}

// RateLimiter paces requests with a token bucket from golang.org/x/time/rate.
// Each worker owns one, so pacing is per egress connection.
type RateLimiter struct {
	limiter *rate.Limiter
	every   time.Duration
	burst   int
}

// NewRateLimiter allows requestsPerMinute requests with the given burst
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(every), burst),
		every:   every,
		burst:   burst,
	}
}

// New builds a limiter from configuration
func New(cfg config.RateLimitConfig) *RateLimiter {
	return NewRateLimiter(cfg.RequestsPerMinute, cfg.BurstSize)
}

// Allow checks if a request can proceed now
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a request is allowed
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Reset refills the bucket
func (r *RateLimiter) Reset() {
	r.limiter = rate.NewLimiter(rate.Every(r.every), r.burst)
}

// Interval returns the spacing between requests once the burst is spent
func (r *RateLimiter) Interval() time.Duration {
	return r.every
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
