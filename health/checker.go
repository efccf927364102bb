package health

import (
	"context"
	"time"

	"github.com/jonwraymond/rescache/resilience"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component serves data but some of it is
	// stale or failing to refresh.
	StatusDegraded
	// StatusUnhealthy indicates the component cannot serve data.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of a health check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded creates a degraded result.
func Degraded(message string, err error) Result {
	return Result{Status: StatusDegraded, Message: message, Error: err, Timestamp: time.Now()}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// BreakerChecker reports a circuit breaker: closed is healthy, half-open is
// degraded and open is unhealthy. A nil breaker is always healthy.
func BreakerChecker(name string, cb *resilience.CircuitBreaker) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		if cb == nil {
			return Healthy("no circuit breaker")
		}
		state := cb.State()
		details := map[string]any{
			"state":    state.String(),
			"failures": cb.Failures(),
		}
		switch state {
		case resilience.StateOpen:
			return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
		case resilience.StateHalfOpen:
			return Degraded("circuit probing", nil).WithDetails(details)
		default:
			return Healthy("circuit closed").WithDetails(details)
		}
	})
}
