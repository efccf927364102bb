package resilience

import (
	"errors"

	"github.com/cenkalti/backoff/v5"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when a token is not available within
	// the configured wait.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an attempt exceeds its timeout.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrInvalidPolicy is returned by PolicyConfig.Validate.
	ErrInvalidPolicy = errors.New("resilience: invalid policy")
)

// Permanent marks err as not retryable. Retry returns the original error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
