package task

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskFinished indicates an operation that needs an unfinished task.
	ErrTaskFinished = errors.New("task: already finished")

	// ErrTaskPending indicates an operation refused while the task runs.
	ErrTaskPending = errors.New("task: still pending")

	// ErrTaskNotStarted indicates a poll of a task that was never run.
	ErrTaskNotStarted = errors.New("task: not started")

	// ErrTaskCancelled is the outcome of a task cancelled before it started.
	ErrTaskCancelled = errors.New("task: cancelled before start")

	// ErrTaskNotFound indicates an unknown task id.
	ErrTaskNotFound = errors.New("task: not found")

	// ErrServiceClosed indicates use of a closed InfoService.
	ErrServiceClosed = errors.New("task: service closed")
)

// IllegalStateError reports an operation the task's state does not allow.
type IllegalStateError struct {
	TaskID string
	Op     string
	State  State
	Err    error
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("task %s: cannot %s in state %s: %v", e.TaskID, e.Op, e.State, e.Err)
}

func (e *IllegalStateError) Unwrap() error { return e.Err }

// RemoteError is the error a remote job reported about itself.
type RemoteError struct {
	Message    string
	ErrorCode  string
	StackTrace string
}

func (e *RemoteError) Error() string {
	if e.ErrorCode == "" {
		return e.Message
	}
	return e.ErrorCode + ": " + e.Message
}

// RemoteTaskError is the outcome of a job that finished with an error.
type RemoteTaskError struct {
	TaskID string
	Remote *RemoteError
}

func (e *RemoteTaskError) Error() string {
	return fmt.Sprintf("task %s: remote failure: %v", e.TaskID, e.Remote)
}

func (e *RemoteTaskError) Unwrap() error {
	if e.Remote == nil {
		return nil
	}
	return e.Remote
}
