package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/rescache/observe/exporters"
)

// Observer provides access to telemetry primitives.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown should be idempotent and return the first error encountered.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

type observer struct {
	tracer         trace.Tracer
	meter          metric.Meter
	logger         Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewObserver builds the providers cfg enables. Disabled signals get no-op
// implementations. Providers already started are shut down if a later one
// fails to build.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(cfg.resourceAttributes()...))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer("noop"),
		meter:  noop.NewMeterProvider().Meter("noop"),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Tracing, res)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		obs.tracerProvider = tp
		obs.tracer = tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		mp, err := newMeterProvider(ctx, cfg.Metrics, res)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		obs.meterProvider = mp
		obs.meter = mp.Meter(cfg.ServiceName)
	}

	if cfg.Global {
		if obs.tracerProvider != nil {
			otel.SetTracerProvider(obs.tracerProvider)
		}
		if obs.meterProvider != nil {
			otel.SetMeterProvider(obs.meterProvider)
		}
	}

	if cfg.Logging.Enabled {
		obs.logger = NewLogger(cfg.Logging.Level)
	}
	return obs, nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := exporters.NewTracingExporter(ctx, cfg.Exporter)
	if err != nil {
		return nil, err
	}

	var root sdktrace.Sampler
	switch {
	case cfg.SamplePct >= MaxSamplePct:
		root = sdktrace.AlwaysSample()
	case cfg.SamplePct <= MinSamplePct:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(cfg.SamplePct)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(root)),
		sdktrace.WithBatcher(exporter),
	), nil
}

func newMeterProvider(ctx context.Context, cfg MetricsConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Exporter)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }

func (o *observer) Meter() metric.Meter { return o.meter }

func (o *observer) Logger() Logger { return o.logger }

// Shutdown flushes and stops the providers. Later calls return the first
// result.
func (o *observer) Shutdown(ctx context.Context) error {
	o.shutdownOnce.Do(func() {
		var errs []error
		if o.tracerProvider != nil {
			if err := o.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
			}
		}
		if o.meterProvider != nil {
			if err := o.meterProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
			}
		}
		o.shutdownErr = errors.Join(errs...)
	})
	return o.shutdownErr
}
