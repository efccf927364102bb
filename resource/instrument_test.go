package resource

import (
	"bytes"
	"context"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/observe"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestResource_Instrumentation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	var logs bytes.Buffer
	logger := observe.NewLoggerWithWriter("debug", &logs)
	mw := observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), metrics, logger)

	b := newBackend(map[string]int{"a": 1})
	r := NewMap(b.load, WithName("users"), WithMiddleware(mw))
	ctx := context.Background()

	for range 2 {
		if _, err := r.Load(ctx, key.Of("a")); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}
	if err := r.MarkOutdated(ctx, key.ListOf("a")); err != nil {
		t.Fatalf("MarkOutdated() error = %v", err)
	}

	if got := counterTotal(t, reader, "resource.load.total"); got != 1 {
		t.Errorf("resource.load.total = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "resource.load.hits"); got != 1 {
		t.Errorf("resource.load.hits = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "resource.outdated.keys"); got != 1 {
		t.Errorf("resource.outdated.keys = %d, want 1", got)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "resource.load.users" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if !strings.Contains(logs.String(), "resource load completed") {
		t.Errorf("debug log missing, got %q", logs.String())
	}
}

func TestResource_LoadFailureLogged(t *testing.T) {
	var logs bytes.Buffer
	b := newBackend(nil)
	b.err = errBackend
	r := NewMap(b.load, WithName("users"), WithLogger(observe.NewLoggerWithWriter("info", &logs)))

	if _, err := r.Load(context.Background(), key.Of("a")); err == nil {
		t.Fatal("Load() should fail")
	}
	out := logs.String()
	if !strings.Contains(out, "resource load failed") || !strings.Contains(out, errBackend.Error()) {
		t.Errorf("error log missing, got %q", out)
	}
}
