package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of calls allowed per second.
	// Default: 100
	Rate float64

	// Burst is the bucket size.
	// Default: 1
	Burst int

	// MaxWait is the longest a call may wait for a token. Zero fails
	// immediately when the bucket is empty.
	MaxWait time.Duration
}

// RateLimiter is a token bucket. Waiting callers reserve their token up
// front, so concurrent waiters are served in arrival order.
type RateLimiter struct {
	config RateLimiterConfig
	now    func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	rl := &RateLimiter{config: config, now: time.Now}
	rl.tokens = float64(config.Burst)
	rl.last = rl.now()
	return rl
}

func (rl *RateLimiter) advanceLocked() time.Time {
	now := rl.now()
	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens = min(float64(rl.config.Burst), rl.tokens+elapsed.Seconds()*rl.config.Rate)
	}
	rl.last = now
	return now
}

// reserve takes a token, possibly going into debt, and returns how long the
// caller must wait for it. It takes nothing when the wait exceeds maxWait.
func (rl *RateLimiter) reserve(maxWait time.Duration) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.advanceLocked()
	after := rl.tokens - 1
	var wait time.Duration
	if after < 0 {
		wait = time.Duration(-after / rl.config.Rate * float64(time.Second))
	}
	if wait > maxWait {
		return wait, false
	}
	rl.tokens = after
	return wait, true
}

func (rl *RateLimiter) cancel() {
	rl.mu.Lock()
	rl.tokens = min(float64(rl.config.Burst), rl.tokens+1)
	rl.mu.Unlock()
}

// Allow takes a token if one is available now.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve(0)
	return ok
}

// Wait blocks until a token is available. It returns ErrRateLimitExceeded
// when the wait would exceed MaxWait.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wait, ok := rl.reserve(rl.config.MaxWait)
	if !ok {
		return ErrRateLimitExceeded
	}
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.cancel()
		return ctx.Err()
	}
}

// Execute runs op once a token is available.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Tokens returns the current number of available tokens. It is negative
// while waiters hold reservations.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.advanceLocked()
	return rl.tokens
}
