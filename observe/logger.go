package observe

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	WithResource(meta ResourceMeta) Logger
}

// Field is a structured log field.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown levels map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// structuredLogger writes one JSON object per line.
type structuredLogger struct {
	level     LogLevel
	out       *lockedWriter
	baseAttrs map[string]any
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger creates a structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &structuredLogger{
		level:     ParseLogLevel(level),
		out:       &lockedWriter{w: w},
		baseAttrs: make(map[string]any),
	}
}

// WithResource returns a logger with resource context attached. The returned
// logger shares the writer.
func (l *structuredLogger) WithResource(meta ResourceMeta) Logger {
	attrs := maps.Clone(l.baseAttrs)
	attrs["resource.name"] = meta.Name
	if meta.Kind != "" {
		attrs["resource.kind"] = meta.Kind
	}

	return &structuredLogger{
		level:     l.level,
		out:       l.out,
		baseAttrs: attrs,
	}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *structuredLogger) log(_ context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.baseAttrs)+len(fields)+3)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	for k, v := range l.baseAttrs {
		entry[k] = v
	}

	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			entry[f.Key] = v.Error()
		default:
			entry[f.Key] = v
		}
		if slices.Contains(RedactedFields, f.Key) {
			entry[f.Key] = "[REDACTED]"
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// Values that cannot be encoded are dropped, the message is kept.
		data, _ = json.Marshal(map[string]any{
			"timestamp": entry["timestamp"],
			"level":     entry["level"],
			"msg":       msg,
			"log_error": err.Error(),
		})
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write(append(data, '\n'))
}

// ErrorField returns a Field named "error".
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err}
}

var _ Logger = (*structuredLogger)(nil)

type noopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (l noopLogger) WithResource(ResourceMeta) Logger      { return l }
