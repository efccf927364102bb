package task

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/rescache/observe"
)

type testObserver struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	logger observe.Logger
}

func (o *testObserver) Tracer() trace.Tracer   { return o.tp.Tracer("test") }
func (o *testObserver) Meter() metric.Meter    { return o.mp.Meter("test") }
func (o *testObserver) Logger() observe.Logger { return o.logger }
func (o *testObserver) Shutdown(ctx context.Context) error {
	if err := o.tp.Shutdown(ctx); err != nil {
		return err
	}
	return o.mp.Shutdown(ctx)
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestInfoService_Instrumentation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()
	obs := &testObserver{
		tp:     sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		mp:     sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		logger: observe.NopLogger(),
	}
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	tr := newFakeTransport()
	tr.setGetErr(errTransport)
	s := newService(t, tr, InfoServiceConfig{Name: "exports", Observer: obs, PollDelay: time.Millisecond})
	ctx := context.Background()

	task, err := s.Run(ctx, startsAs("job-1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	waitFor(t, func() bool { return sumOf(t, reader, "task.poll.failures") >= 1 })

	tr.setGetErr(nil)
	tr.set("job-1", Info{Running: false})
	waitFor(t, func() bool { return task.State() == Finished })
	s.Close()

	if got := sumOf(t, reader, "task.poll.updates"); got < 2 {
		t.Errorf("task.poll.updates = %d, want at least 2", got)
	}

	spans := recorder.Ended()
	if len(spans) == 0 {
		t.Fatal("no poll spans recorded")
	}
	if spans[0].Name() != "resource.poll.exports" {
		t.Errorf("span name = %q, want resource.poll.exports", spans[0].Name())
	}
}
