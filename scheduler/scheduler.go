package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// Operation is the work run under a key.
type Operation[T any] func(ctx context.Context) (T, error)

type flight[K, T any] struct {
	key   K
	done  chan struct{}
	value T
	err   error
}

// Scheduler runs at most one operation per overlapping key set.
//
// Contract:
// - Concurrency: safe for concurrent use; the check for an overlapping
// operation and the registration of a new one happen under one lock.
// - Context: operations run detached from the caller's cancellation; a
// caller whose ctx ends stops waiting, the operation keeps running.
// - Errors: an operation's error is returned to every caller that started
// or joined it. Nothing is retried.
type Scheduler[K, T any] struct {
	overlaps func(a, b K) bool

	mu      sync.Mutex
	flights []*flight[K, T]
}

// New creates a scheduler using overlaps as the collision predicate.
// overlaps is called with the scheduler's lock held and must not call back
// into the scheduler.
func New[K, T any](overlaps func(a, b K) bool) *Scheduler[K, T] {
	return &Scheduler[K, T]{overlaps: overlaps}
}

// Schedule runs op under key k, or joins an in-flight operation whose key
// overlaps k. onSettle, if set, runs exactly once when this call returns,
// whether it started or joined the operation and whatever its outcome.
func (s *Scheduler[K, T]) Schedule(ctx context.Context, k K, op Operation[T], onSettle func()) (T, error) {
	if onSettle != nil {
		defer onSettle()
	}

	s.mu.Lock()
	if f := s.findLocked(k); f != nil {
		s.mu.Unlock()
		return s.await(ctx, f)
	}

	f := &flight[K, T]{key: k, done: make(chan struct{})}
	s.flights = append(s.flights, f)
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), f, op)

	return s.await(ctx, f)
}

func (s *Scheduler[K, T]) run(ctx context.Context, f *flight[K, T], op Operation[T]) {
	defer func() {
		if r := recover(); r != nil {
			f.err = fmt.Errorf("%w: %v", ErrOperationPanic, r)
		}

		s.mu.Lock()
		for i, other := range s.flights {
			if other == f {
				s.flights = append(s.flights[:i], s.flights[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		close(f.done)
	}()

	f.value, f.err = op(ctx)
}

func (s *Scheduler[K, T]) await(ctx context.Context, f *flight[K, T]) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// findLocked returns the first in-flight operation overlapping k. Caller must hold mu.
func (s *Scheduler[K, T]) findLocked(k K) *flight[K, T] {
	for _, f := range s.flights {
		if s.overlaps(f.key, k) {
			return f
		}
	}
	return nil
}

// IsExecuting reports whether an operation overlapping k is in flight.
func (s *Scheduler[K, T]) IsExecuting(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(k) != nil
}

// InFlight returns the number of running operations.
func (s *Scheduler[K, T]) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flights)
}

// Wait blocks until no operation overlapping k is in flight.
func (s *Scheduler[K, T]) Wait(ctx context.Context, k K) error {
	for {
		s.mu.Lock()
		f := s.findLocked(k)
		s.mu.Unlock()
		if f == nil {
			return nil
		}

		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
