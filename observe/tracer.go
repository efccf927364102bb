package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with resource-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for op on the resource.
	StartSpan(ctx context.Context, meta ResourceMeta, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ResourceMeta, op string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	kv := []attribute.KeyValue{
		attribute.String("resource.id", meta.ID()),
		attribute.String("resource.name", meta.Name),
		attribute.String("resource.op", op),
		attribute.Bool("resource.error", false),
	}
	if meta.Kind != "" {
		kv = append(kv, attribute.String("resource.kind", meta.Kind))
	}
	kv = append(kv, extra...)

	return t.tracer.Start(ctx, meta.SpanName(op),
		trace.WithAttributes(kv...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("resource.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer producing non-recording spans.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
