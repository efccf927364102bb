package resource

import (
	"context"

	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/observe"
)

// Unit is the only key of a Data resource.
type Unit struct{}

// DataLoader fetches the single value of a Data resource.
type DataLoader[V any] func(ctx context.Context, includes []string) (V, error)

// Data is a resource holding one unkeyed value.
type Data[V any] struct {
	res *Resource[Unit, V]
}

// NewData creates a single-value resource.
func NewData[V any](loader DataLoader[V], opts ...Option) *Data[V] {
	load := func(ctx context.Context, req LoadRequest[Unit]) (map[Unit]V, error) {
		v, err := loader(ctx, req.Includes)
		if err != nil {
			return nil, err
		}
		return map[Unit]V{{}: v}, nil
	}
	return &Data[V]{res: newResource[Unit, V](nil, load, observe.KindData, opts)}
}

func unitKey() key.ResourceKey[Unit] { return key.Of(Unit{}) }

// Resource exposes the underlying keyed resource for events and chaining.
func (d *Data[V]) Resource() *Resource[Unit, V] { return d.res }

// Data returns the stored value without loading.
func (d *Data[V]) Data() (V, bool) {
	return d.res.Value(Unit{})
}

// Load returns the value, fetching it unless it is fresh with includes.
func (d *Data[V]) Load(ctx context.Context, includes ...string) (V, error) {
	if err := d.res.load(ctx, unitKey(), includes, false); err != nil {
		var zero V
		return zero, err
	}
	v, _ := d.Data()
	return v, nil
}

// Refresh fetches the value unconditionally.
func (d *Data[V]) Refresh(ctx context.Context, includes ...string) (V, error) {
	if err := d.res.load(ctx, unitKey(), includes, true); err != nil {
		var zero V
		return zero, err
	}
	v, _ := d.Data()
	return v, nil
}

// SetData replaces the stored value. Freshness is unchanged.
func (d *Data[V]) SetData(ctx context.Context, v V) error {
	return d.res.Set(ctx, unitKey(), v)
}

// MarkOutdated flags the value as stale.
func (d *Data[V]) MarkOutdated(ctx context.Context) error {
	return d.res.MarkOutdated(ctx, unitKey())
}

// MarkOutdatedAll is MarkOutdated, so a Data resource can be a Connect target.
func (d *Data[V]) MarkOutdatedAll(ctx context.Context) error {
	return d.MarkOutdated(ctx)
}

// IsLoaded reports whether the value is stored with every include.
func (d *Data[V]) IsLoaded(includes ...string) bool {
	return d.res.IsLoaded(unitKey(), includes...)
}

// IsOutdated reports whether the value is stale or was never loaded.
func (d *Data[V]) IsOutdated() bool {
	return d.res.IsOutdated(unitKey())
}

// IsLoading reports whether a load is in flight.
func (d *Data[V]) IsLoading() bool {
	return d.res.IsLoading(unitKey())
}

// Error returns the last load failure.
func (d *Data[V]) Error() error {
	return d.res.Error(Unit{})
}

var _ Outdater = (*Data[int])(nil)
