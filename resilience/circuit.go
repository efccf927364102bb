package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls with ErrCircuitOpen.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30s
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent probes allowed.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called after each transition, outside the breaker lock.
	OnStateChange func(from, to State)

	// IsFailure reports whether err counts against the backend.
	// Default: every error except context cancellation.
	IsFailure func(err error) bool
}

// CircuitBreaker stops calling a backend after repeated failures.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

type transition struct{ from, to State }

func (cb *CircuitBreaker) notify(ts []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, t := range ts {
		cb.config.OnStateChange(t.from, t.to)
	}
}

// setLocked records a transition and returns it for notification.
func (cb *CircuitBreaker) setLocked(to State, ts []transition) []transition {
	if cb.state == to {
		return ts
	}
	ts = append(ts, transition{cb.state, to})
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateHalfOpen:
		cb.probes = 0
	case StateClosed:
		cb.failures = 0
		cb.probes = 0
	}
	return ts
}

func (cb *CircuitBreaker) refreshLocked(ts []transition) []transition {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		ts = cb.setLocked(StateHalfOpen, ts)
	}
	return ts
}

// Execute runs op unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = op(ctx)
	cb.record(probe, err)
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	ts := cb.refreshLocked(nil)
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenMaxRequests {
			err = ErrCircuitOpen
		} else {
			cb.probes++
			probe = true
		}
	}
	cb.mu.Unlock()
	cb.notify(ts)
	return probe, err
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	var ts []transition
	switch {
	case probe && failed:
		ts = cb.setLocked(StateOpen, ts)
	case probe:
		ts = cb.setLocked(StateClosed, ts)
	case cb.state != StateClosed:
		// Result of a call admitted before the circuit opened.
	case failed:
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			ts = cb.setLocked(StateOpen, ts)
		}
	case err == nil:
		cb.failures = 0
	}
	cb.mu.Unlock()
	cb.notify(ts)
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	ts := cb.refreshLocked(nil)
	s := cb.state
	cb.mu.Unlock()
	cb.notify(ts)
	return s
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	ts := cb.setLocked(StateClosed, nil)
	cb.failures = 0
	cb.mu.Unlock()
	cb.notify(ts)
}
