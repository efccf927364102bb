package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PolicyConfig selects the patterns a Policy applies. Zero values disable
// the corresponding pattern.
type PolicyConfig struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retry enables retries.
	Retry *RetryConfig

	// MaxConcurrent caps concurrent calls. Callers over the cap wait for a
	// slot until their context ends.
	MaxConcurrent int

	// CircuitBreaker enables a breaker around the retried call.
	CircuitBreaker *CircuitBreakerConfig

	// RateLimit spaces out individual attempts.
	RateLimit *RateLimiterConfig
}

// Validate checks the configuration.
func (c PolicyConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidPolicy, c.Timeout)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: negative max concurrent %d", ErrInvalidPolicy, c.MaxConcurrent)
	}
	if c.Retry != nil && c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: negative retry attempts %d", ErrInvalidPolicy, c.Retry.MaxAttempts)
	}
	if c.RateLimit != nil && c.RateLimit.Rate < 0 {
		return fmt.Errorf("%w: negative rate %f", ErrInvalidPolicy, c.RateLimit.Rate)
	}
	return nil
}

// Policy runs calls through the configured patterns. A nil *Policy runs
// calls directly.
type Policy struct {
	bulkhead *Bulkhead
	breaker  *CircuitBreaker
	retry    *Retry
	limiter  *RateLimiter
	timeout  *Timeout
}

// NewPolicy builds a Policy from cfg.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{}
	if cfg.MaxConcurrent > 0 {
		p.bulkhead = NewBulkhead(BulkheadConfig{MaxConcurrent: cfg.MaxConcurrent, MaxWait: -1})
	}
	if cfg.CircuitBreaker != nil {
		p.breaker = NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	if cfg.Retry != nil {
		p.retry = NewRetry(*cfg.Retry)
	}
	if cfg.RateLimit != nil {
		p.limiter = NewRateLimiter(*cfg.RateLimit)
	}
	if cfg.Timeout > 0 {
		p.timeout = NewTimeout(cfg.Timeout)
	}
	return p, nil
}

// CircuitBreaker returns the policy's breaker, or nil.
func (p *Policy) CircuitBreaker() *CircuitBreaker {
	if p == nil {
		return nil
	}
	return p.breaker
}

// Bulkhead returns the policy's bulkhead, or nil.
func (p *Policy) Bulkhead() *Bulkhead {
	if p == nil {
		return nil
	}
	return p.bulkhead
}

// Execute runs op through the policy.
//
// The order, outermost first, is bulkhead, circuit breaker, retry, rate
// limiter, timeout. The breaker therefore counts one failure per retried
// call and every attempt consumes a rate-limit token.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	if p == nil {
		return op(ctx)
	}

	run := op
	if p.timeout != nil {
		run = wrap(run, p.timeout.Execute)
	}
	if p.limiter != nil {
		run = wrap(run, p.limiter.Execute)
	}
	if p.retry != nil {
		run = wrap(run, p.retry.Execute)
	}
	if p.breaker != nil {
		run = wrap(run, p.breaker.Execute)
	}
	if p.bulkhead != nil {
		run = wrap(run, p.bulkhead.Execute)
	}
	return run(ctx)
}

type stage func(context.Context, func(context.Context) error) error

func wrap(inner func(context.Context) error, s stage) func(context.Context) error {
	return func(ctx context.Context) error {
		return s(ctx, inner)
	}
}

// Call runs op through p and returns its value. A value produced by an
// attempt that finishes after its timeout is discarded.
func Call[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	var (
		mu   sync.Mutex
		out  T
		done bool
	)
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		if !done {
			out = v
		}
		mu.Unlock()
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	done = true
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
