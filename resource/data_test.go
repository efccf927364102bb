package resource

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/rescache/key"
)

type settings struct {
	Theme string
	Beta  bool
}

func TestData_LoadOnce(t *testing.T) {
	var calls atomic.Int32
	d := NewData(func(_ context.Context, includes []string) (settings, error) {
		calls.Add(1)
		return settings{Theme: "dark", Beta: slices.Contains(includes, "beta")}, nil
	}, WithName("settings"))
	ctx := context.Background()

	if _, ok := d.Data(); ok {
		t.Fatal("Data() should be empty before the first load")
	}
	got, err := d.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Theme != "dark" || got.Beta {
		t.Errorf("Load() = %+v", got)
	}
	if _, err := d.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("loader calls = %d, want 1", calls.Load())
	}
	if !d.IsLoaded() || d.IsOutdated() {
		t.Error("value should be loaded and fresh")
	}

	if d.IsLoaded("beta") {
		t.Error("IsLoaded(beta) = true before loading it")
	}
	got, err = d.Load(ctx, "beta")
	if err != nil {
		t.Fatalf("Load(beta) error = %v", err)
	}
	if !got.Beta {
		t.Error("loader should see the requested include")
	}
	if calls.Load() != 2 {
		t.Errorf("loader calls = %d, want 2", calls.Load())
	}
}

func TestData_MarkOutdatedAndRefresh(t *testing.T) {
	var calls atomic.Int32
	d := NewData(func(context.Context, []string) (int, error) {
		return int(calls.Add(1)), nil
	})
	ctx := context.Background()

	if v, _ := d.Load(ctx); v != 1 {
		t.Fatalf("Load() = %d, want 1", v)
	}
	if err := d.MarkOutdated(ctx); err != nil {
		t.Fatalf("MarkOutdated() error = %v", err)
	}
	if !d.IsOutdated() {
		t.Fatal("IsOutdated() = false after MarkOutdated")
	}
	if v, _ := d.Load(ctx); v != 2 {
		t.Errorf("Load() = %d, want 2", v)
	}
	if v, _ := d.Refresh(ctx); v != 3 {
		t.Errorf("Refresh() = %d, want 3", v)
	}
}

func TestData_SetData(t *testing.T) {
	d := NewData(func(context.Context, []string) (string, error) {
		return "remote", nil
	})
	ctx := context.Background()

	var updates int
	d.Resource().OnDataUpdate.AddHandler(func(context.Context, key.ResourceKey[Unit]) error {
		updates++
		return nil
	})

	if err := d.SetData(ctx, "local"); err != nil {
		t.Fatalf("SetData() error = %v", err)
	}
	if v, ok := d.Data(); !ok || v != "local" {
		t.Errorf("Data() = %q, %v", v, ok)
	}
	if updates != 1 {
		t.Errorf("OnDataUpdate fired %d times, want 1", updates)
	}
}

func TestData_LoadError(t *testing.T) {
	d := NewData(func(context.Context, []string) (int, error) {
		return 0, errBackend
	})

	_, err := d.Load(context.Background())
	if !errors.Is(err, ErrLoader) || !errors.Is(err, errBackend) {
		t.Fatalf("Load() error = %v", err)
	}
	if !errors.Is(d.Error(), errBackend) {
		t.Errorf("Error() = %v, want the stored failure", d.Error())
	}
	if _, ok := d.Data(); ok {
		t.Error("failed load must not store a value")
	}
}
