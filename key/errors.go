package key

import (
	"errors"
	"fmt"
)

// Sentinel errors for key operations.
var (
	// ErrAliasResolution is matched by every alias resolution failure.
	ErrAliasResolution = errors.New("key: alias resolution failed")

	// ErrNoResolver is returned when an alias has no registered resolver.
	ErrNoResolver = errors.New("key: no resolver registered for alias")

	// ErrAliasDepth is returned when alias resolution does not settle on a
	// concrete key within MaxAliasDepth steps.
	ErrAliasDepth = errors.New("key: alias resolution depth exceeded")

	// ErrInvalidAlias is returned when registering an alias with an empty id or nil resolver.
	ErrInvalidAlias = errors.New("key: invalid alias registration")

	// ErrAliasExists is returned when registering an alias id twice.
	ErrAliasExists = errors.New("key: alias already registered")
)

// AliasResolutionError reports an alias that could not be dereferenced.
// It is a programming error and is never retried by resources.
type AliasResolutionError struct {
	Alias string
	Err   error
}

func (e *AliasResolutionError) Error() string {
	return fmt.Sprintf("key: cannot resolve alias %s: %v", e.Alias, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AliasResolutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrAliasResolution.
func (e *AliasResolutionError) Is(target error) bool {
	return target == ErrAliasResolution
}
