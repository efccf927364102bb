package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long Acquire waits for a slot. Zero fails immediately;
	// a negative value waits until the context ends.
	MaxWait time.Duration
}

// Bulkhead limits concurrent operations.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	active   atomic.Int64
	peak     atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Acquire takes a slot. It returns ErrBulkheadFull when no slot frees up
// within MaxWait, or ctx.Err() when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.enter()
		return nil
	}
	if b.config.MaxWait == 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	wctx := ctx
	if b.config.MaxWait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, b.config.MaxWait)
		defer cancel()
	}
	if err := b.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	b.enter()
	return nil
}

func (b *Bulkhead) enter() {
	n := b.active.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	b.active.Add(-1)
	b.sem.Release(1)
}

// Execute runs op inside a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Stats returns current bulkhead counters.
func (b *Bulkhead) Stats() BulkheadStats {
	active := int(b.active.Load())
	return BulkheadStats{
		Active:        active,
		Peak:          int(b.peak.Load()),
		Available:     b.config.MaxConcurrent - active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected.Load(),
	}
}

// BulkheadStats contains bulkhead statistics.
type BulkheadStats struct {
	Active        int
	Peak          int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
