package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Info is the status of a remote job.
type Info struct {
	ID      string
	Name    string
	Running bool
	Status  string
	Error   *RemoteError
	Result  any
}

// Transport talks to the service running remote jobs.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Idempotency: both calls may be repeated for the same id.
type Transport interface {
	GetTaskInfo(ctx context.Context, id string, removeOnFinish bool) (Info, error)
	CancelTask(ctx context.Context, id string) error
}

// InitFunc starts a remote job and returns its remote id.
type InitFunc func(ctx context.Context) (string, error)

// State is the lifecycle stage of an AsyncTask.
type State int

const (
	// NotStarted means Run has not been called.
	NotStarted State = iota
	// Running means the remote job was started and has not finished.
	Running
	// Finished means the outcome is known.
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// TaskOption configures an AsyncTask.
type TaskOption func(*AsyncTask)

// WithRemoveOnFinish asks the transport to drop the remote record once the
// job reports it finished.
func WithRemoveOnFinish() TaskOption {
	return func(t *AsyncTask) { t.removeOnFinish = true }
}

// AsyncTask is a cancellable handle to one remote job.
type AsyncTask struct {
	id             string
	init           InitFunc
	transport      Transport
	removeOnFinish bool

	runOnce sync.Once
	runErr  error
	infoSF  singleflight.Group

	mu        sync.Mutex
	state     State
	remoteID  string
	cancelled bool
	info      *Info
	outcome   error
	done      chan struct{}
}

// NewAsyncTask creates a task that starts its job through init.
func NewAsyncTask(transport Transport, init InitFunc, opts ...TaskOption) *AsyncTask {
	t := &AsyncTask{
		id:        uuid.NewString(),
		init:      init,
		transport: transport,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the local id.
func (t *AsyncTask) ID() string { return t.id }

// RemoteID returns the id init returned, or "" before the job started.
func (t *AsyncTask) RemoteID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteID
}

// Run starts the job. init runs once; every call returns its outcome.
func (t *AsyncTask) Run(ctx context.Context) error {
	t.runOnce.Do(func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			t.runErr = ErrTaskCancelled
			t.finish(nil, ErrTaskCancelled)
			return
		}
		t.mu.Unlock()

		remoteID, err := t.init(ctx)
		if err != nil {
			t.runErr = fmt.Errorf("task %s: start: %w", t.id, err)
			t.finish(nil, t.runErr)
			return
		}

		t.mu.Lock()
		t.remoteID = remoteID
		if t.state == NotStarted {
			t.state = Running
		}
		cancelled := t.cancelled
		t.mu.Unlock()

		// Cancel arrived while init was running.
		if cancelled {
			if err := t.transport.CancelTask(ctx, remoteID); err != nil {
				t.mu.Lock()
				t.cancelled = false
				t.mu.Unlock()
			}
		}
	})
	return t.runErr
}

// UpdateInfo fetches the job status. Concurrent calls share one request.
// A job that finished with an error is not an UpdateInfo failure; its
// outcome is reported by Wait.
func (t *AsyncTask) UpdateInfo(ctx context.Context) (Info, error) {
	t.mu.Lock()
	state, remoteID := t.state, t.remoteID
	var last Info
	if t.info != nil {
		last = *t.info
	}
	t.mu.Unlock()

	switch state {
	case NotStarted:
		return Info{}, &IllegalStateError{TaskID: t.id, Op: "update", State: state, Err: ErrTaskNotStarted}
	case Finished:
		return last, nil
	}

	v, err, _ := t.infoSF.Do("info", func() (any, error) {
		info, err := t.transport.GetTaskInfo(ctx, remoteID, t.removeOnFinish)
		if err != nil {
			return Info{}, fmt.Errorf("task %s: get info: %w", t.id, err)
		}
		t.apply(info)
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}

func (t *AsyncTask) apply(info Info) {
	t.mu.Lock()
	t.info = &info
	t.mu.Unlock()

	if info.Running {
		return
	}
	var outcome error
	if info.Error != nil {
		outcome = &RemoteTaskError{TaskID: t.id, Remote: info.Error}
	}
	t.finish(&info, outcome)
}

// finish records the outcome once and releases Wait.
func (t *AsyncTask) finish(info *Info, outcome error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Finished {
		return
	}
	t.state = Finished
	if info != nil {
		t.info = info
	}
	t.outcome = outcome
	close(t.done)
}

// Wait blocks until the job finishes or ctx ends.
func (t *AsyncTask) Wait(ctx context.Context) (Info, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var info Info
	if t.info != nil {
		info = *t.info
	}
	return info, t.outcome
}

// Done is closed when the outcome is known.
func (t *AsyncTask) Done() <-chan struct{} { return t.done }

// Cancel asks the remote side to stop the job. It is a no-op when already
// cancelled and fails with ErrTaskFinished once the job is done. If the
// remote call fails the task is no longer considered cancelled.
//
// Cancelling does not finish the task: Wait still reports what the remote
// side does next. A task cancelled before Run never starts.
func (t *AsyncTask) Cancel(ctx context.Context) error {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return nil
	}
	if t.state == Finished {
		t.mu.Unlock()
		return &IllegalStateError{TaskID: t.id, Op: "cancel", State: Finished, Err: ErrTaskFinished}
	}
	t.cancelled = true
	state, remoteID := t.state, t.remoteID
	t.mu.Unlock()

	if state == NotStarted {
		return nil
	}
	if err := t.transport.CancelTask(ctx, remoteID); err != nil {
		t.mu.Lock()
		t.cancelled = false
		t.mu.Unlock()
		return fmt.Errorf("task %s: cancel: %w", t.id, err)
	}
	return nil
}

// Cancelled reports whether a cancellation is outstanding.
func (t *AsyncTask) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Pending reports whether the job was started and has not finished.
func (t *AsyncTask) Pending() bool {
	return t.State() == Running
}

// State returns the lifecycle stage.
func (t *AsyncTask) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Info returns the last status received.
func (t *AsyncTask) Info() (Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.info == nil {
		return Info{}, false
	}
	return *t.info, true
}
