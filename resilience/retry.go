package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the factor for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// MaxElapsed bounds the total time spent retrying. Zero means attempts
	// and ctx are the only limits.
	MaxElapsed time.Duration

	// Jitter adds up to 25% randomness to each delay.
	Jitter bool

	// RetryIf reports whether err should trigger a retry.
	// Default: every error except context cancellation and ErrCircuitOpen.
	RetryIf func(err error) bool

	// OnRetry is called before each retry with the attempt that failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = retryable
	}
	return c
}

func retryable(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, ErrCircuitOpen)
}

// Retry retries failed operations with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry handler. Zero fields take their defaults.
func NewRetry(config RetryConfig) *Retry {
	return &Retry{config: config.withDefaults()}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx ends. The last error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(r.config.MaxElapsed),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, err, delay)
			}
		}),
	)
	return unwrapPermanent(err)
}

func (r *Retry) backOff() backoff.BackOff {
	c := r.config
	var b backoff.BackOff
	switch c.Strategy {
	case BackoffConstant:
		b = backoff.NewConstantBackOff(min(c.InitialDelay, c.MaxDelay))
	case BackoffLinear:
		b = &linearBackOff{step: c.InitialDelay, max: c.MaxDelay}
	default:
		exp := &backoff.ExponentialBackOff{
			InitialInterval: c.InitialDelay,
			Multiplier:      c.Multiplier,
			MaxInterval:     c.MaxDelay,
		}
		if c.Jitter {
			exp.RandomizationFactor = 0.25
		}
		exp.Reset()
		return exp
	}
	if c.Jitter {
		b = &jitterBackOff{BackOff: b}
	}
	return b
}

type linearBackOff struct {
	step time.Duration
	max  time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return min(b.step*time.Duration(b.n), b.max)
}

func (b *linearBackOff) Reset() { b.n = 0 }

type jitterBackOff struct {
	backoff.BackOff
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d < 4 {
		return d
	}
	// #nosec G404 -- jitter is non-cryptographic timing variance.
	return d + time.Duration(rand.Int64N(int64(d/4)))
}
