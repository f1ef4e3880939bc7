// Package ratelimiter paces outbound calls to the exchange.
package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface paces a sequence of operations such as paged API calls.
type RateLimiterInterface interface {
	// Wait blocks the calling goroutine until the next operation may run
	// or ctx is done.
	Wait(ctx context.Context) error
}

// RateLimiter allows one operation per interval. Waiting suspends only the
// caller's goroutine. The first operation never waits.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter spacing operations by at least interval.
// A non-positive interval disables pacing.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, 1)}
}

// Wait implements RateLimiterInterface. It fails without waiting when the
// next slot lies past ctx's deadline.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
