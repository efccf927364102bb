package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds a CheckAll call.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxParallel caps concurrently running checks. Zero means no cap.
	MaxParallel int
}

// Aggregator runs registered checkers and combines their results.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds or replaces a checker.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a checker.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// CheckerNames returns registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs one named checker.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs every checker in parallel and returns results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	names := slices.Clone(a.order)
	checkers := make([]Checker, len(names))
	for i, n := range names {
		checkers[i] = a.checkers[n]
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var g errgroup.Group
	if a.config.MaxParallel > 0 {
		g.SetLimit(a.config.MaxParallel)
	}
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(names))
	for i, n := range names {
		out[n] = results[i]
	}
	return out
}

// OverallStatus returns the worst status in results. An empty set is healthy.
func OverallStatus(results map[string]Result) Status {
	status := StatusHealthy
	for _, r := range results {
		status = max(status, r.Status)
	}
	return status
}

func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	ch := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- Unhealthy("check panicked", fmt.Errorf("%w: %v", ErrCheckPanic, r))
			}
		}()
		ch <- checker.Check(ctx)
	}()

	var res Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = Unhealthy("check timed out", ErrCheckTimeout)
	}
	res.Duration = time.Since(start)
	if res.Timestamp.IsZero() {
		res.Timestamp = start
	}
	return res
}

// Checker exposes the aggregator as a single Checker named "aggregate".
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		results := a.CheckAll(ctx)
		status := OverallStatus(results)

		details := make(map[string]any, len(results))
		for name, r := range results {
			details[name] = map[string]any{
				"status":   r.Status.String(),
				"message":  r.Message,
				"duration": r.Duration.String(),
			}
		}

		var message string
		switch status {
		case StatusHealthy:
			message = "all checks passed"
		case StatusDegraded:
			message = "some checks degraded"
		default:
			message = "some checks failed"
		}
		return Result{Status: status, Message: message, Details: details, Timestamp: time.Now()}
	})
}
