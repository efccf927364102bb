package resource

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLoader matches every *LoaderError.
	ErrLoader = errors.New("resource: loader failed")

	// ErrValueCount indicates a write whose value count does not match the key.
	ErrValueCount = errors.New("resource: value count does not match key")

	// ErrAliasWrite indicates a write addressed to an alias that resolved to
	// nothing.
	ErrAliasWrite = errors.New("resource: alias resolved to no keys")
)

// LoaderError wraps a loader failure with the resource and key it belongs to.
type LoaderError struct {
	Resource string
	Key      string
	Err      error

	outdate func(ctx context.Context) error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("resource %s: load %s: %v", e.Resource, e.Key, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// Is reports ErrLoader as a match.
func (e *LoaderError) Is(target error) bool { return target == ErrLoader }

// MarkOutdated outdates the failed key so the next load retries it.
func (e *LoaderError) MarkOutdated(ctx context.Context) error {
	if e.outdate == nil {
		return nil
	}
	return e.outdate(ctx)
}
