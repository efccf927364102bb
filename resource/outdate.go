package resource

import (
	"context"

	"github.com/jonwraymond/rescache/event"
	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/observe"
)

func outdate(m *metadata.Metadata) { m.Outdated = true }

// MarkOutdated flags the keys k addresses as stale and fires OnDataOutdated.
// Nothing is fetched; the next Load does that.
func (r *Resource[K, V]) MarkOutdated(ctx context.Context, k key.ResourceKey[K]) error {
	k = r.norm(k)
	if alias, ok := k.(key.Alias[K]); ok {
		r.aliasMeta.Update(alias.Fingerprint(), outdate)
	}
	resolved, err := r.Resolve(k)
	if err != nil {
		return err
	}
	keys := key.ToSlice(resolved)

	r.mu.Lock()
	r.meta.UpdateAll(keys, func(_ K, m *metadata.Metadata) { outdate(m) })
	r.mu.Unlock()

	r.mw.Metrics().RecordOutdate(ctx, r.telemetry(), len(keys))
	return r.OnDataOutdated.Execute(ctx, k)
}

// MarkOutdatedAll flags every known key and alias as stale. The key set is
// snapshotted first, so handlers may mutate the resource.
func (r *Resource[K, V]) MarkOutdatedAll(ctx context.Context) error {
	keys := r.knownKeys()

	r.mu.Lock()
	r.meta.UpdateAll(keys, func(_ K, m *metadata.Metadata) { outdate(m) })
	r.aliasMeta.UpdateAll(r.aliasMeta.Keys(), func(_ string, m *metadata.Metadata) { outdate(m) })
	r.mu.Unlock()

	r.mw.Metrics().RecordOutdate(ctx, r.telemetry(), len(keys))
	r.logger.Debug(ctx, "marked all outdated", observe.F("keys", len(keys)))
	return r.OnDataOutdated.Execute(ctx, key.ListOf(keys...))
}

// Connect outdates target entirely whenever r outdates anything. Cycles of
// connected resources stop at the first resource reached twice.
func (r *Resource[K, V]) Connect(target Outdater) {
	r.OnDataOutdated.Next(event.LinkFunc[key.ResourceKey[K]](func(ctx context.Context, _ key.ResourceKey[K]) error {
		return target.MarkOutdatedAll(ctx)
	}))
}

// ConnectKeys outdates the keys of to that fn maps each outdated key of from
// onto. A nil result outdates nothing.
func ConnectKeys[K1 comparable, V1 any, K2 comparable, V2 any](from *Resource[K1, V1], to *Resource[K2, V2], fn func(key.ResourceKey[K1]) key.ResourceKey[K2]) {
	from.OnDataOutdated.Next(event.LinkFunc[key.ResourceKey[K1]](func(ctx context.Context, k key.ResourceKey[K1]) error {
		mapped := fn(k)
		if mapped == nil {
			return nil
		}
		return to.MarkOutdated(ctx, mapped)
	}))
}
