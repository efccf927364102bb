package event

import (
	"context"
	"errors"
	"sync"
)

// Handler reacts to one event.
type Handler[T any] func(ctx context.Context, data T) error

// HandlerID identifies a registered handler for removal.
type HandlerID uint64

// Link is anything an executor can forward events to.
type Link[T any] interface {
	Execute(ctx context.Context, data T) error
}

// LinkFunc adapts a function to Link.
type LinkFunc[T any] func(ctx context.Context, data T) error

// Execute calls f.
func (f LinkFunc[T]) Execute(ctx context.Context, data T) error {
	return f(ctx, data)
}

// Option configures an Executor.
type Option[T any] func(*Executor[T])

// WithFilter sets the predicate deciding whether an event concerns a keyed
// subscription. Without a filter keyed handlers receive every event.
func WithFilter[T any](fn func(data, subscription T) bool) Option[T] {
	return func(e *Executor[T]) {
		e.filter = fn
	}
}

type registration[T any] struct {
	id           HandlerID
	handler      Handler[T]
	subscription T
	keyed        bool
}

// Executor is an ordered handler list with before/next chaining.
//
// Contract:
// - Concurrency: safe for concurrent use; handlers may add or remove
// handlers and execute other executors while running.
// - Ordering: before-links, then handlers in subscription order, then post
// handlers, then next-links.
// - Errors: handler errors are joined and returned after the pipeline
// completes; ErrInterrupt stops handlers and next-links silently.
type Executor[T any] struct {
	mu       sync.RWMutex
	lastID   HandlerID
	handlers []registration[T]
	post     []registration[T]
	before   []Link[T]
	next     []Link[T]
	filter   func(data, subscription T) bool
}

// New creates an executor.
func New[T any](opts ...Option[T]) *Executor[T] {
	e := &Executor[T]{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddHandler subscribes h to every event.
func (e *Executor[T]) AddHandler(h Handler[T]) HandlerID {
	return e.add(&e.handlers, registration[T]{handler: h})
}

// AddHandlerFor subscribes h to events matching subscription under the filter.
func (e *Executor[T]) AddHandlerFor(subscription T, h Handler[T]) HandlerID {
	return e.add(&e.handlers, registration[T]{handler: h, subscription: subscription, keyed: true})
}

// AddPostHandler subscribes h to run after all regular handlers.
func (e *Executor[T]) AddPostHandler(h Handler[T]) HandlerID {
	return e.add(&e.post, registration[T]{handler: h})
}

func (e *Executor[T]) add(list *[]registration[T], r registration[T]) HandlerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastID++
	r.id = e.lastID
	*list = append(*list, r)
	return r.id
}

// RemoveHandler unsubscribes the handler with id. Reports whether it existed.
func (e *Executor[T]) RemoveHandler(id HandlerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, list := range []*[]registration[T]{&e.handlers, &e.post} {
		for i, r := range *list {
			if r.id == id {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Len returns the number of regular and post handlers.
func (e *Executor[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers) + len(e.post)
}

// Before runs l ahead of the local handlers on every execution.
func (e *Executor[T]) Before(l Link[T]) {
	e.mu.Lock()
	e.before = append(e.before, l)
	e.mu.Unlock()
}

// Next runs l after the local handlers on every execution.
func (e *Executor[T]) Next(l Link[T]) {
	e.mu.Lock()
	e.next = append(e.next, l)
	e.mu.Unlock()
}

// Execute runs the pipeline synchronously. Handlers receive ctx unchanged, so
// they may re-enter the executor; a cycle of links is cut at the first
// executor seen twice.
func (e *Executor[T]) Execute(ctx context.Context, data T) error {
	if visited(ctx, e) {
		// Already running further up this link chain.
		return nil
	}
	linkCtx := withVisit(ctx, e)

	e.mu.RLock()
	before := append([]Link[T](nil), e.before...)
	handlers := append([]registration[T](nil), e.handlers...)
	post := append([]registration[T](nil), e.post...)
	next := append([]Link[T](nil), e.next...)
	filter := e.filter
	e.mu.RUnlock()

	var errs []error

	for _, l := range before {
		if err := l.Execute(linkCtx, data); err != nil {
			if errors.Is(err, ErrInterrupt) {
				return nil
			}
			errs = append(errs, err)
		}
	}

	interrupted := false
	for _, r := range handlers {
		if r.keyed && filter != nil && !filter(data, r.subscription) {
			continue
		}
		if err := r.handler(ctx, data); err != nil {
			if errors.Is(err, ErrInterrupt) {
				interrupted = true
				break
			}
			errs = append(errs, err)
		}
	}

	for _, r := range post {
		if err := r.handler(ctx, data); err != nil && !errors.Is(err, ErrInterrupt) {
			errs = append(errs, err)
		}
	}

	if !interrupted {
		for _, l := range next {
			if err := l.Execute(linkCtx, data); err != nil && !errors.Is(err, ErrInterrupt) {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// ExecuteAsync runs the pipeline on a new goroutine. The returned channel
// receives the result once and is then closed.
func (e *Executor[T]) ExecuteAsync(ctx context.Context, data T) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- e.Execute(ctx, data)
	}()
	return done
}

// Mapped returns a Link that converts events with fn before forwarding them
// to target.
func Mapped[T, U any](target Link[U], fn func(T) U) Link[T] {
	return LinkFunc[T](func(ctx context.Context, data T) error {
		return target.Execute(ctx, fn(data))
	})
}

// Filtered returns a Link that forwards only events accepted by pred.
func Filtered[T any](target Link[T], pred func(T) bool) Link[T] {
	return LinkFunc[T](func(ctx context.Context, data T) error {
		if !pred(data) {
			return nil
		}
		return target.Execute(ctx, data)
	})
}

type visitKey struct{}

type visit struct {
	executor any
	parent   *visit
}

func withVisit(ctx context.Context, executor any) context.Context {
	parent, _ := ctx.Value(visitKey{}).(*visit)
	return context.WithValue(ctx, visitKey{}, &visit{executor: executor, parent: parent})
}

func visited(ctx context.Context, executor any) bool {
	for v, _ := ctx.Value(visitKey{}).(*visit); v != nil; v = v.parent {
		if v.executor == executor {
			return true
		}
	}
	return false
}
