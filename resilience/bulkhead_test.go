package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBulkhead_FailFastWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("err = %v, want ErrBulkheadFull", err)
	}
	b.Release()

	stats := b.Stats()
	if stats.Rejected != 1 || stats.Active != 0 || stats.Available != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestBulkhead_MaxWaitExpires(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	_ = b.Acquire(context.Background())
	defer b.Release()

	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("err = %v, want ErrBulkheadFull", err)
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: -1})
	_ = b.Acquire(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Release()
	}()

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b.Release()
}

func TestBulkhead_ContextEndsWait(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: -1})
	_ = b.Acquire(context.Background())
	defer b.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if b.Stats().Rejected != 0 {
		t.Error("context expiry should not count as a rejection")
	}
}

func TestBulkhead_CapsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 3, MaxWait: -1})

	var wg sync.WaitGroup
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(context.Context) error {
				time.Sleep(2 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	stats := b.Stats()
	if stats.Peak > 3 {
		t.Errorf("peak = %d, want <= 3", stats.Peak)
	}
	if stats.Active != 0 {
		t.Errorf("active = %d, want 0", stats.Active)
	}
}
