package task

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/rescache/health"
	"github.com/jonwraymond/rescache/observe"
)

// syncBuffer guards a buffer written by the poll goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newService(t *testing.T, tr Transport, cfg InfoServiceConfig) *InfoService {
	t.Helper()
	if cfg.PollDelay == 0 {
		cfg.PollDelay = 2 * time.Millisecond
	}
	s := NewInfoService(tr, cfg)
	t.Cleanup(s.Close)
	return s
}

func TestInfoService_PollsUntilFinished(t *testing.T) {
	tr := newFakeTransport()
	s := newService(t, tr, InfoServiceConfig{})
	ctx := context.Background()

	task, err := s.Run(ctx, startsAs("job-1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.State() != PollRunning {
		t.Fatalf("State() = %v, want running", s.State())
	}
	waitFor(t, func() bool { get, _ := tr.counts(); return get >= 2 })
	if !task.Pending() {
		t.Fatal("task finished before the remote job did")
	}

	tr.set("job-1", Info{Running: false, Result: "ok"})
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	info, err := task.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if info.Result != "ok" {
		t.Errorf("Result = %v, want ok", info.Result)
	}

	// Finished tasks stay registered and keep the loop alive.
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if err := s.Remove(task.ID()); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	waitFor(t, func() bool { return s.State() == PollIdle })
}

func TestInfoService_RemoveOnFinish(t *testing.T) {
	tr := newFakeTransport()
	tr.set("job-1", Info{Running: false})
	s := newService(t, tr, InfoServiceConfig{RemoveOnFinish: true})
	ctx := context.Background()

	task, err := s.Run(ctx, startsAs("job-1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	waitFor(t, func() bool { return s.State() == PollIdle })
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if _, ok := s.Get(task.ID()); ok {
		t.Error("finished task is still registered")
	}
	tr.mu.Lock()
	removed := tr.removed
	tr.mu.Unlock()
	if len(removed) != 1 || removed[0] != "job-1" {
		t.Errorf("remote removals = %v, want [job-1]", removed)
	}

	// A new registration starts a new loop.
	tr.set("job-2", Info{Running: true})
	next, err := s.Run(ctx, startsAs("job-2"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.State() != PollRunning {
		t.Errorf("State() = %v after a new task, want running", s.State())
	}
	tr.set("job-2", Info{Running: false})
	waitFor(t, func() bool { return next.State() == Finished })
	waitFor(t, func() bool { return s.State() == PollIdle })
}

func TestInfoService_Remove(t *testing.T) {
	tr := newFakeTransport()
	s := newService(t, tr, InfoServiceConfig{PollDelay: time.Hour})
	ctx := context.Background()

	task, err := s.Run(ctx, startsAs("job-1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	err = s.Remove(task.ID())
	if !errors.Is(err, ErrTaskPending) {
		t.Fatalf("Remove(pending) error = %v, want ErrTaskPending", err)
	}
	var ise *IllegalStateError
	if !errors.As(err, &ise) || ise.Op != "remove" {
		t.Errorf("Remove(pending) error = %#v", err)
	}

	if err := s.Remove("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Remove(missing) error = %v, want ErrTaskNotFound", err)
	}
	if err := s.Cancel(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Cancel(missing) error = %v, want ErrTaskNotFound", err)
	}
	if err := s.Cancel(ctx, task.ID()); err != nil {
		t.Errorf("Cancel() error = %v", err)
	}
	if !task.Cancelled() {
		t.Error("task not cancelled through the service")
	}
}

func TestInfoService_TasksInOrder(t *testing.T) {
	s := newService(t, newFakeTransport(), InfoServiceConfig{PollDelay: time.Hour})

	a := s.Create(startsAs("a"))
	b := s.Create(startsAs("b"))
	c := s.Create(startsAs("c"))

	got := s.Tasks()
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Fatalf("Tasks() = %v, want registration order", got)
	}
	if a.State() != NotStarted {
		t.Error("Create must not start the task")
	}
	if err := s.Remove(b.ID()); err != nil {
		t.Fatalf("Remove(not started) error = %v", err)
	}
	if got := s.Tasks(); len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("Tasks() after Remove = %v", got)
	}
}

func TestInfoService_PollFailures(t *testing.T) {
	tr := newFakeTransport()
	tr.setGetErr(errTransport)
	logs := &syncBuffer{}
	s := newService(t, tr, InfoServiceConfig{
		Name:   "exports",
		Logger: observe.NewLoggerWithWriter("warn", logs),
	})
	ctx := context.Background()
	checker := s.HealthChecker()

	task, err := s.Run(ctx, startsAs("job-1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	waitFor(t, func() bool { return checker.Check(ctx).Status == health.StatusDegraded })

	res := checker.Check(ctx)
	if !errors.Is(res.Error, errTransport) {
		t.Errorf("health error = %v, want the transport failure", res.Error)
	}
	if checker.Name() != "exports" {
		t.Errorf("Name() = %q, want exports", checker.Name())
	}
	out := logs.String()
	if !strings.Contains(out, "task poll failed") || !strings.Contains(out, task.ID()) {
		t.Errorf("poll failure not logged with the task id:\n%s", out)
	}

	// The loop keeps going and recovers.
	tr.setGetErr(nil)
	tr.set("job-1", Info{Running: false})
	waitFor(t, func() bool { return task.State() == Finished })
	waitFor(t, func() bool { return checker.Check(ctx).Status == health.StatusHealthy })
}

func TestInfoService_Close(t *testing.T) {
	tr := newFakeTransport()
	s := NewInfoService(tr, InfoServiceConfig{PollDelay: time.Millisecond})
	ctx := context.Background()

	if _, err := s.Run(ctx, startsAs("job-1")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s.Close()
	if s.State() != PollIdle {
		t.Errorf("State() = %v after Close, want idle", s.State())
	}

	before, _ := tr.counts()
	time.Sleep(10 * time.Millisecond)
	if after, _ := tr.counts(); after != before {
		t.Errorf("transport polled %d times after Close", after-before)
	}
	if _, err := s.Run(ctx, startsAs("job-2")); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Run() after Close error = %v, want ErrServiceClosed", err)
	}
	s.Close()
}
