// Package exporters builds the OpenTelemetry span exporters and metric
// readers selected by observe.Config.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names.
const (
	Stdout     = "stdout"
	OTLP       = "otlp"
	Jaeger     = "jaeger"
	Prometheus = "prometheus"
	None       = "none"
)

var (
	// TracingExporters lists the accepted tracing exporter names. The empty
	// name is treated as None.
	TracingExporters = []string{OTLP, Jaeger, Stdout, None, ""}

	// MetricsExporters lists the accepted metrics exporter names.
	MetricsExporters = []string{OTLP, Prometheus, Stdout, None, ""}
)

var (
	// ErrUnknownExporter is returned for names outside the lists above.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrEndpointNotConfigured is returned when a network exporter has no
	// endpoint in the environment.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")
)

// Stdout exporters write here. Tests may redirect it.
var stdoutWriter io.Writer = os.Stdout

func endpointFrom(vars ...string) (string, error) {
	for _, v := range vars {
		if ep := os.Getenv(v); ep != "" {
			return ep, nil
		}
	}
	return "", fmt.Errorf("%w: set one of %v", ErrEndpointNotConfigured, vars)
}

// NewTracingExporter creates a span exporter by name.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case Stdout:
		return stdouttrace.New(stdouttrace.WithWriter(stdoutWriter))

	case OTLP:
		if _, err := endpointFrom("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)

	case Jaeger:
		// Jaeger accepts OTLP natively.
		if _, err := endpointFrom("OTEL_EXPORTER_JAEGER_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)

	case None, "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// NewMetricsReader creates a metric reader by name.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	switch name {
	case Stdout:
		return periodic(stdoutmetric.New(stdoutmetric.WithWriter(stdoutWriter)))

	case OTLP:
		if _, err := endpointFrom("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, err
		}
		return periodic(otlpmetricgrpc.New(ctx))

	case Prometheus:
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return exp, nil

	case None, "":
		return periodic(stdoutmetric.New(stdoutmetric.WithWriter(io.Discard)))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

func periodic(exp sdkmetric.Exporter, err error) (sdkmetric.Reader, error) {
	if err != nil {
		return nil, fmt.Errorf("exporters: metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}
