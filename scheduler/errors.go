package scheduler

import "errors"

// ErrOperationPanic wraps a panic raised by a scheduled operation.
var ErrOperationPanic = errors.New("scheduler: operation panicked")
