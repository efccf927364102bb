package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeout_Default(t *testing.T) {
	if got := NewTimeout(0).Duration(); got != DefaultTimeout {
		t.Errorf("Duration = %v, want %v", got, DefaultTimeout)
	}
}

func TestTimeout_CompletesInTime(t *testing.T) {
	err := NewTimeout(time.Second).Execute(context.Background(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTimeout_PassesThroughErrors(t *testing.T) {
	boom := errors.New("boom")
	err := NewTimeout(time.Second).Execute(context.Background(), func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestTimeout_ExpiresOnIgnoredContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := NewTimeout(20*time.Millisecond).Execute(context.Background(), func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout did not return promptly")
	}
}

func TestTimeout_DeadlineFromOperation(t *testing.T) {
	err := NewTimeout(20*time.Millisecond).Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestTimeout_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTimeout(time.Second).Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
