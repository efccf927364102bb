package event

import "errors"

// ErrInterrupt may be returned by a handler to stop the remaining handlers
// and next-links. It is not reported to the caller of Execute.
var ErrInterrupt = errors.New("event: execution interrupted")
