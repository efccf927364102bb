package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout applies when NewTimeout is given a non-positive duration.
const DefaultTimeout = 30 * time.Second

// Timeout bounds a single attempt.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{d: d}
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute runs op with a deadline. If op ignores its context, Execute still
// returns when the deadline passes; op keeps running in the background.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return ctx.Err()
	}
}
