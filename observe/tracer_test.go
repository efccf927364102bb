package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer() (Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewTracer(tp.Tracer("test")), rec
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracer_SpanNameAndAttributes(t *testing.T) {
	tracer, rec := newTestTracer()
	meta := ResourceMeta{Name: "users", Kind: KindMap}

	_, span := tracer.StartSpan(context.Background(), meta, "load", attribute.String("resource.key", "alice"))
	tracer.EndSpan(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "resource.load.users" {
		t.Errorf("span name = %q", s.Name())
	}
	if v, ok := attrValue(s.Attributes(), "resource.id"); !ok || v.AsString() != "map.users" {
		t.Errorf("resource.id = %v", v)
	}
	if v, ok := attrValue(s.Attributes(), "resource.key"); !ok || v.AsString() != "alice" {
		t.Errorf("resource.key = %v", v)
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
}

func TestTracer_EndSpanRecordsError(t *testing.T) {
	tracer, rec := newTestTracer()

	_, span := tracer.StartSpan(context.Background(), ResourceMeta{Name: "users"}, "load")
	tracer.EndSpan(span, errors.New("backend down"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if v, _ := attrValue(s.Attributes(), "resource.error"); !v.AsBool() {
		t.Error("resource.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event")
	}
}

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx, span := tracer.StartSpan(context.Background(), ResourceMeta{Name: "x"}, "load")
	if ctx == nil || span == nil {
		t.Fatal("nop tracer returned nil")
	}
	tracer.EndSpan(span, errors.New("ignored"))
}
