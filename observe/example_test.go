package observe_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/rescache/observe"
)

func ExampleNewObserver() {
	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "rescache-example",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	fmt.Println("observer ready")
	// Output:
	// observer ready
}

func ExampleLogger_WithResource() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf).
		WithResource(observe.ResourceMeta{Name: "users", Kind: observe.KindMap})

	logger.Info(context.Background(), "loaded", observe.F("key", "alice"), observe.F("token", "s3cr3t"))

	var entry map[string]any
	_ = json.Unmarshal(buf.Bytes(), &entry)
	fmt.Println(entry["resource.name"], entry["resource.kind"], entry["key"], entry["token"])
	// Output:
	// users map alice [REDACTED]
}
