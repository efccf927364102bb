package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_IncludesResourceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithResource(ResourceMeta{Name: "users", Kind: KindMap})

	logger.Info(context.Background(), "loaded", F("key", "alice"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["resource.name"] != "users" {
		t.Errorf("resource.name = %v", e["resource.name"])
	}
	if e["resource.kind"] != KindMap {
		t.Errorf("resource.kind = %v", e["resource.kind"])
	}
	if e["key"] != "alice" {
		t.Errorf("key = %v", e["key"])
	}
	if e["level"] != "info" || e["msg"] != "loaded" {
		t.Errorf("unexpected entry: %v", e)
	}
}

func TestLogger_WithResourceDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.WithResource(ResourceMeta{Name: "users"})

	parent.Info(context.Background(), "plain")

	e := decodeLines(t, &buf)[0]
	if _, ok := e["resource.name"]; ok {
		t.Errorf("parent logger gained resource.name: %v", e)
	}
}

func TestLogger_ErrorValuesRendered(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Error(context.Background(), "load failed", ErrorField(errors.New("boom")))

	e := decodeLines(t, &buf)[0]
	if e["error"] != "boom" {
		t.Errorf("error = %v, want boom", e["error"])
	}
	if e["level"] != "error" {
		t.Errorf("level = %v", e["level"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "task created",
		F("token", "abc123"),
		F("password", "hunter2"),
		F("task", "export"),
	)

	e := decodeLines(t, &buf)[0]
	if e["token"] != "[REDACTED]" || e["password"] != "[REDACTED]" {
		t.Errorf("sensitive fields not redacted: %v", e)
	}
	if e["task"] != "export" {
		t.Errorf("task = %v", e["task"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()
			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			entries := decodeLines(t, &buf)
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, e := range entries {
				if e["level"] != tt.want[i] {
					t.Errorf("entry %d level = %v, want %s", i, e["level"], tt.want[i])
				}
			}
		})
	}
}

func TestLogger_UnencodableFieldKeepsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "odd", F("ch", make(chan int)))

	e := decodeLines(t, &buf)[0]
	if e["msg"] != "odd" {
		t.Errorf("msg = %v", e["msg"])
	}
	if _, ok := e["log_error"]; !ok {
		t.Errorf("expected log_error: %v", e)
	}
}

func TestLogger_ConcurrentWritesStayLineDelimited(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := base.WithResource(ResourceMeta{Name: "r"})
			for range 20 {
				l.Info(context.Background(), "tick", F("worker", i))
			}
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 160 {
		t.Fatalf("got %d lines, want 160", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
	} {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
