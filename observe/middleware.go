package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Middleware wraps cache operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that only runs the wrapped function.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Tracer returns the tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Load runs fn as a loader invocation: it opens a span, records load
// metrics and logs failures.
func (m *Middleware) Load(ctx context.Context, meta ResourceMeta, k string, fn func(context.Context) error) error {
	ctx, span := m.tracer.StartSpan(ctx, meta, "load", attribute.String("resource.key", k))
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordLoad(ctx, meta, duration, err)

	logger := m.logger.WithResource(meta)
	fields := []Field{
		F("key", k),
		F("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		logger.Error(ctx, "resource load failed", append(fields, ErrorField(err))...)
	} else {
		logger.Debug(ctx, "resource load completed", fields...)
	}

	return err
}
