package task

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/rescache/health"
	"github.com/jonwraymond/rescache/observe"
)

// InfoServiceConfig configures an InfoService.
type InfoServiceConfig struct {
	// Name identifies the service in logs and telemetry.
	// Default: "tasks"
	Name string

	// PollDelay is the pause between poll ticks.
	// Default: 1s
	PollDelay time.Duration

	// RemoveOnFinish drops finished tasks on the remote side and from the
	// service.
	RemoveOnFinish bool

	// Logger receives poll failures. Defaults to the observer's logger, or
	// a no-op logger.
	Logger observe.Logger

	// Observer instruments poll ticks.
	Observer observe.Observer
}

// PollState is the state of the poll loop.
type PollState int

const (
	// PollIdle means no loop is running.
	PollIdle PollState = iota
	// PollRunning means the loop is polling.
	PollRunning
)

func (s PollState) String() string {
	if s == PollRunning {
		return "running"
	}
	return "idle"
}

// InfoService tracks a set of tasks and polls the pending ones.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Polling: one loop at most, started by the first registration and
// stopped when no task is left. A later registration starts a new loop.
// - Errors: per-task poll failures are logged and counted; the loop keeps
// going.
type InfoService struct {
	transport Transport
	config    InfoServiceConfig
	meta      observe.ResourceMeta
	logger    observe.Logger
	mw        *observe.Middleware

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	tasks        map[string]*AsyncTask
	order        []string
	polling      bool
	closed       bool
	lastFailures int
	lastErr      error
}

// NewInfoService creates a service polling through transport.
func NewInfoService(transport Transport, config InfoServiceConfig) *InfoService {
	if config.Name == "" {
		config.Name = "tasks"
	}
	if config.PollDelay <= 0 {
		config.PollDelay = time.Second
	}

	var mw *observe.Middleware
	if config.Observer != nil {
		if m, err := observe.MiddlewareFromObserver(config.Observer); err == nil {
			mw = m
		}
	}
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, config.Logger)
	}
	logger := config.Logger
	if logger == nil {
		logger = mw.Logger()
	}

	meta := observe.ResourceMeta{Name: config.Name, Kind: observe.KindTask}
	ctx, cancel := context.WithCancel(context.Background())
	return &InfoService{
		transport: transport,
		config:    config,
		meta:      meta,
		logger:    logger.WithResource(meta),
		mw:        mw,
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(map[string]*AsyncTask),
	}
}

// Create registers a task for init without starting it.
func (s *InfoService) Create(init InitFunc) *AsyncTask {
	var opts []TaskOption
	if s.config.RemoveOnFinish {
		opts = append(opts, WithRemoveOnFinish())
	}
	t := NewAsyncTask(s.transport, init, opts...)

	s.mu.Lock()
	s.tasks[t.ID()] = t
	s.order = append(s.order, t.ID())
	s.startLocked()
	s.mu.Unlock()
	return t
}

// Run creates a task and starts it.
func (s *InfoService) Run(ctx context.Context, init InitFunc) (*AsyncTask, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrServiceClosed
	}

	t := s.Create(init)
	return t, t.Run(ctx)
}

// Get returns the task with the local id.
func (s *InfoService) Get(id string) (*AsyncTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns the registered tasks in registration order.
func (s *InfoService) Tasks() []*AsyncTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AsyncTask, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

// Len returns the number of registered tasks.
func (s *InfoService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Cancel cancels the task with the local id.
func (s *InfoService) Cancel(ctx context.Context, id string) error {
	t, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Cancel(ctx)
}

// Remove unregisters a task. Pending tasks must be cancelled and finish
// first.
func (s *InfoService) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Pending() {
		return &IllegalStateError{TaskID: id, Op: "remove", State: Running, Err: ErrTaskPending}
	}
	s.removeLocked(id)
	return nil
}

func (s *InfoService) removeLocked(id string) {
	delete(s.tasks, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// State returns the poll loop state.
func (s *InfoService) State() PollState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polling {
		return PollRunning
	}
	return PollIdle
}

// Close stops the poll loop and waits for it to exit. Registered tasks are
// kept but no longer polled.
func (s *InfoService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// startLocked starts the loop unless one is running. Caller must hold mu.
func (s *InfoService) startLocked() {
	if s.polling || s.closed {
		return
	}
	s.polling = true
	s.wg.Add(1)
	go s.poll()
}

func (s *InfoService) poll() {
	defer s.wg.Done()
	s.logger.Debug(s.ctx, "poll loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			s.stop()
			return
		case <-timer.C:
		}

		pending, ok := s.snapshot()
		if !ok {
			s.logger.Debug(s.ctx, "poll loop stopped")
			return
		}
		s.tick(s.ctx, pending)
		timer.Reset(s.config.PollDelay)
	}
}

func (s *InfoService) stop() {
	s.mu.Lock()
	s.polling = false
	s.mu.Unlock()
}

// snapshot returns the pending tasks, or false after marking the loop
// stopped when no task is registered.
func (s *InfoService) snapshot() ([]*AsyncTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.RemoveOnFinish {
		for _, id := range slices.Clone(s.order) {
			if s.tasks[id].State() == Finished {
				s.removeLocked(id)
			}
		}
	}
	if len(s.tasks) == 0 {
		s.polling = false
		return nil, false
	}
	pending := make([]*AsyncTask, 0, len(s.order))
	for _, id := range s.order {
		if t := s.tasks[id]; t.Pending() {
			pending = append(pending, t)
		}
	}
	return pending, true
}

func (s *InfoService) tick(ctx context.Context, pending []*AsyncTask) {
	ctx, span := s.mw.Tracer().StartSpan(ctx, s.meta, "poll", attribute.Int("task.pending", len(pending)))

	failures := 0
	var lastErr error
	for _, t := range pending {
		if _, err := t.UpdateInfo(ctx); err != nil {
			failures++
			lastErr = err
			s.logger.Warn(ctx, "task poll failed",
				observe.F("task_id", t.ID()),
				observe.F("remote_id", t.RemoteID()),
				observe.ErrorField(err))
		}
	}

	s.mu.Lock()
	s.lastFailures = failures
	s.lastErr = lastErr
	s.mu.Unlock()

	s.mw.Metrics().RecordPoll(ctx, s.meta, len(pending), failures)
	s.mw.Tracer().EndSpan(span, lastErr)
}

// HealthChecker reports the service as degraded while the last poll tick
// had failures.
func (s *InfoService) HealthChecker() health.Checker {
	return health.NewCheckerFunc(s.config.Name, func(context.Context) health.Result {
		s.mu.Lock()
		failures, lastErr := s.lastFailures, s.lastErr
		details := map[string]any{
			"tasks":   len(s.tasks),
			"polling": s.polling,
		}
		s.mu.Unlock()

		if failures > 0 {
			details["failures"] = failures
			return health.Degraded("task polling failing", lastErr).WithDetails(details)
		}
		return health.Healthy("ok").WithDetails(details)
	})
}
