package observe

import (
	"errors"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jonwraymond/rescache/observe/exporters"
)

// Config selects the telemetry stack behind an Observer.
type Config struct {
	ServiceName string
	Version     string

	// Attributes are attached to the telemetry resource of every signal,
	// e.g. {"deployment.environment": "prod"}.
	Attributes map[string]string

	// Global installs the tracer and meter providers as the otel globals.
	Global bool

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig configures spans around loads and poll ticks.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // otlp|jaeger|stdout|none
	SamplePct float64 // 0.0-1.0, applied to root spans only
}

// MetricsConfig configures the resource and task counters.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // otlp|prometheus|stdout|none
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug|info|warn|error
}

var validLogLevels = []string{"debug", "info", "warn", "error", ""}

// Validate reports every problem in c. The result matches the sentinel of
// each failing field with errors.Is.
func (c Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, ErrMissingServiceName)
	}

	if c.Tracing.Enabled {
		if !slices.Contains(exporters.TracingExporters, c.Tracing.Exporter) {
			errs = append(errs, &ConfigError{Field: "tracing.exporter", Value: c.Tracing.Exporter, Err: ErrInvalidTracingExporter})
		}
		if pct := c.Tracing.SamplePct; pct < MinSamplePct || pct > MaxSamplePct {
			errs = append(errs, &ConfigError{Field: "tracing.sample_pct", Value: pct, Err: ErrInvalidSamplePct})
		}
	}

	if c.Metrics.Enabled && !slices.Contains(exporters.MetricsExporters, c.Metrics.Exporter) {
		errs = append(errs, &ConfigError{Field: "metrics.exporter", Value: c.Metrics.Exporter, Err: ErrInvalidMetricsExporter})
	}

	if c.Logging.Enabled && !slices.Contains(validLogLevels, c.Logging.Level) {
		errs = append(errs, &ConfigError{Field: "logging.level", Value: c.Logging.Level, Err: ErrInvalidLogLevel})
	}

	return errors.Join(errs...)
}

// resourceAttributes returns the service identity followed by the extra
// attributes in key order.
func (c Config) resourceAttributes() []attribute.KeyValue {
	kv := []attribute.KeyValue{semconv.ServiceName(c.ServiceName)}
	if c.Version != "" {
		kv = append(kv, semconv.ServiceVersion(c.Version))
	}
	for _, k := range slices.Sorted(maps.Keys(c.Attributes)) {
		kv = append(kv, attribute.String(k, c.Attributes[k]))
	}
	return kv
}
