package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache and task telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLoad records one loader invocation with its duration and outcome.
	RecordLoad(ctx context.Context, meta ResourceMeta, duration time.Duration, err error)

	// RecordJoin records a load satisfied by joining an in-flight operation
	// or by the freshness fast path.
	RecordJoin(ctx context.Context, meta ResourceMeta, hit string)

	// RecordOutdate records keys marked outdated.
	RecordOutdate(ctx context.Context, meta ResourceMeta, keys int)

	// RecordPoll records one poll tick over pending tasks.
	RecordPoll(ctx context.Context, meta ResourceMeta, tasks int, failures int)
}

// Join kinds reported by RecordJoin.
const (
	HitCache  = "cache"
	HitJoined = "joined"
)

type metricsImpl struct {
	loadCount    metric.Int64Counter
	loadErrors   metric.Int64Counter
	loadDuration metric.Float64Histogram
	hits         metric.Int64Counter
	outdated     metric.Int64Counter
	pollTasks    metric.Int64Counter
	pollFailures metric.Int64Counter
}

// NewMetrics creates Metrics on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.loadCount, err = meter.Int64Counter(
		"resource.load.total",
		metric.WithDescription("Total number of loader invocations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.loadErrors, err = meter.Int64Counter(
		"resource.load.errors",
		metric.WithDescription("Total number of failed loader invocations"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.loadDuration, err = meter.Float64Histogram(
		"resource.load.duration_ms",
		metric.WithDescription("Loader duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.hits, err = meter.Int64Counter(
		"resource.load.hits",
		metric.WithDescription("Loads served without invoking the loader"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.outdated, err = meter.Int64Counter(
		"resource.outdated.keys",
		metric.WithDescription("Keys marked outdated"),
		metric.WithUnit("{key}"),
	); err != nil {
		return nil, err
	}

	if m.pollTasks, err = meter.Int64Counter(
		"task.poll.updates",
		metric.WithDescription("Task info updates attempted by the poll loop"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, err
	}

	if m.pollFailures, err = meter.Int64Counter(
		"task.poll.failures",
		metric.WithDescription("Task info updates that failed and were retried on the next tick"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func attrs(meta ResourceMeta, extra ...attribute.KeyValue) metric.MeasurementOption {
	kv := []attribute.KeyValue{attribute.String("resource.name", meta.Name)}
	if meta.Kind != "" {
		kv = append(kv, attribute.String("resource.kind", meta.Kind))
	}
	return metric.WithAttributes(append(kv, extra...)...)
}

func (m *metricsImpl) RecordLoad(ctx context.Context, meta ResourceMeta, duration time.Duration, err error) {
	opt := attrs(meta)
	m.loadCount.Add(ctx, 1, opt)
	if err != nil {
		m.loadErrors.Add(ctx, 1, opt)
	}
	m.loadDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordJoin(ctx context.Context, meta ResourceMeta, hit string) {
	m.hits.Add(ctx, 1, attrs(meta, attribute.String("hit", hit)))
}

func (m *metricsImpl) RecordOutdate(ctx context.Context, meta ResourceMeta, keys int) {
	if keys <= 0 {
		return
	}
	m.outdated.Add(ctx, int64(keys), attrs(meta))
}

func (m *metricsImpl) RecordPoll(ctx context.Context, meta ResourceMeta, tasks int, failures int) {
	opt := attrs(meta)
	m.pollTasks.Add(ctx, int64(tasks), opt)
	if failures > 0 {
		m.pollFailures.Add(ctx, int64(failures), opt)
	}
}

type noopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordLoad(context.Context, ResourceMeta, time.Duration, error) {}
func (noopMetrics) RecordJoin(context.Context, ResourceMeta, string)               {}
func (noopMetrics) RecordOutdate(context.Context, ResourceMeta, int)               {}
func (noopMetrics) RecordPoll(context.Context, ResourceMeta, int, int)             {}
