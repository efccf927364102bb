package resource

import (
	"context"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/observe"
	"github.com/jonwraymond/rescache/resilience"
)

// Load returns the values k addresses, fetching them first unless they are
// loaded with includes and not outdated.
func (r *Resource[K, V]) Load(ctx context.Context, k key.ResourceKey[K], includes ...string) ([]V, error) {
	if err := r.load(ctx, r.norm(k), includes, false); err != nil {
		return nil, err
	}
	return r.Get(k)
}

// Refresh fetches the values k addresses regardless of freshness.
func (r *Resource[K, V]) Refresh(ctx context.Context, k key.ResourceKey[K], includes ...string) ([]V, error) {
	if err := r.load(ctx, r.norm(k), includes, true); err != nil {
		return nil, err
	}
	return r.Get(k)
}

// Preload loads independent keys in parallel and returns the first error.
func (r *Resource[K, V]) Preload(ctx context.Context, keys ...key.ResourceKey[K]) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			return r.load(ctx, r.norm(k), nil, false)
		})
	}
	return g.Wait()
}

// target is the key actually fetched for k.
func (r *Resource[K, V]) target(k key.ResourceKey[K]) key.ResourceKey[K] {
	if r.loadThrough == nil {
		return k
	}
	if f, ok := k.(key.Flat[K]); ok {
		if t := r.loadThrough(f.Value); t != nil {
			return r.norm(t)
		}
	}
	return k
}

func (r *Resource[K, V]) load(ctx context.Context, k key.ResourceKey[K], includes []string, refresh bool) error {
	fetch := r.target(k)
	resolved, err := r.Resolve(fetch)
	if err != nil {
		return err
	}
	if !refresh && r.fresh(k, includes) {
		r.mw.Metrics().RecordJoin(ctx, r.telemetry(), observe.HitCache)
		return nil
	}

	for {
		var ran atomic.Bool
		fk := flightKey[K]{key: fetch, resolved: resolved}
		r.setLoading(fk, true)
		out, err := r.sched.Schedule(ctx, fk, func(opCtx context.Context) (outcome[K], error) {
			ran.Store(true)
			return r.perform(opCtx, k, fk, includes, refresh)
		}, func() {
			if !r.sched.IsExecuting(fk) {
				r.setLoading(fk, false)
			}
		})
		if err != nil {
			return err
		}
		if ran.Load() {
			return nil
		}

		// Joined an overlapping load started by someone else.
		r.mw.Metrics().RecordJoin(ctx, r.telemetry(), observe.HitJoined)
		r.logger.Debug(ctx, "joined in-flight load", observe.F("key", k.String()))
		if refresh && !out.refreshed {
			continue
		}
		if covers(out.fetched, resolved) || refresh || r.fresh(k, includes) {
			return nil
		}
		if resolved, err = r.Resolve(fetch); err != nil {
			return err
		}
	}
}

// covers reports whether every key of resolved was part of the flight.
func covers[K comparable](fetched, resolved key.ResourceKey[K]) bool {
	if fetched == nil {
		return false
	}
	in := make(map[K]struct{}, key.Count(fetched))
	key.ForEach(fetched, func(v K, _ int) { in[v] = struct{}{} })
	return key.Every(resolved, func(v K, _ int) bool {
		_, ok := in[v]
		return ok
	})
}

func (r *Resource[K, V]) setLoading(fk flightKey[K], loading bool) {
	set := func(m *metadata.Metadata) { m.Loading = loading }
	r.meta.UpdateAll(key.ToSlice(fk.resolved), func(_ K, m *metadata.Metadata) { set(m) })
	if alias, ok := fk.key.(key.Alias[K]); ok {
		r.aliasMeta.Update(alias.Fingerprint(), set)
	}
}

// perform runs inside the scheduler.
func (r *Resource[K, V]) perform(ctx context.Context, orig key.ResourceKey[K], fk flightKey[K], includes []string, refresh bool) (outcome[K], error) {
	defer r.setLoading(fk, false)

	if !refresh && r.fresh(orig, includes) {
		return outcome[K]{fetched: fk.resolved}, nil
	}

	req := LoadRequest[K]{
		Key:      fk.key,
		Resolved: fk.resolved,
		Includes: slices.Clone(includes),
		Refresh:  refresh,
	}

	var values map[K]V
	err := r.mw.Load(ctx, r.telemetry(), fk.key.String(), func(ctx context.Context) error {
		var err error
		values, err = resilience.Call(ctx, r.policy, func(ctx context.Context) (map[K]V, error) {
			return r.loader(ctx, req)
		})
		return err
	})
	if err != nil {
		return outcome[K]{}, r.fail(ctx, fk, err)
	}

	if r.normalize != nil {
		normalized := make(map[K]V, len(values))
		for k, v := range values {
			normalized[r.flat(k)] = v
		}
		values = normalized
	}

	stored, removed := r.commit(fk, values, includes)
	if err := r.afterWrite(ctx, fk.key, stored, removed); err != nil {
		r.logger.Warn(ctx, "data update handlers failed", observe.ErrorField(err))
	}
	return outcome[K]{refreshed: refresh, fetched: fk.resolved}, nil
}

// commit stores values and marks the fetched keys fresh. It returns the
// keys that now hold a value and the keys an exhaustive load removed.
func (r *Resource[K, V]) commit(fk flightKey[K], values map[K]V, includes []string) (stored, removed []K) {
	now := r.now()
	fresh := func(m *metadata.Metadata) {
		m.Outdated = false
		m.Exception = nil
		m.LoadedAt = now
		m.AddIncludes(includes...)
	}

	requested := key.ToSlice(fk.resolved)
	seen := make(map[K]bool, len(values)+len(requested))
	stored = make([]K, 0, len(values))
	for _, k := range requested {
		if _, ok := values[k]; ok && !seen[k] {
			seen[k] = true
			stored = append(stored, k)
		}
	}
	for k := range values {
		if !seen[k] {
			seen[k] = true
			stored = append(stored, k)
		}
	}

	exhaustive := r.isExhaustive(fk.key)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range stored {
		r.storage.Set(k, values[k])
	}

	touched := slices.Clone(stored)
	for _, k := range requested {
		if seen[k] {
			continue
		}
		seen[k] = true
		if exhaustive {
			removed = append(removed, r.deleteLocked([]K{k})...)
			continue
		}
		touched = append(touched, k)
	}

	r.meta.UpdateAll(touched, func(_ K, m *metadata.Metadata) { fresh(m) })
	if alias, ok := fk.key.(key.Alias[K]); ok {
		r.aliasMeta.Update(alias.Fingerprint(), fresh)
	}
	return stored, removed
}

func (r *Resource[K, V]) fail(ctx context.Context, fk flightKey[K], err error) error {
	lerr := &LoaderError{
		Resource: r.name,
		Key:      fk.key.String(),
		Err:      err,
		outdate: func(ctx context.Context) error {
			return r.MarkOutdated(ctx, fk.key)
		},
	}

	record := func(m *metadata.Metadata) {
		m.Exception = lerr
		m.Outdated = true
	}
	r.meta.UpdateAll(key.ToSlice(fk.resolved), func(_ K, m *metadata.Metadata) { record(m) })
	if alias, ok := fk.key.(key.Alias[K]); ok {
		r.aliasMeta.Update(alias.Fingerprint(), record)
	}

	if herr := r.OnDataError.Execute(ctx, lerr); herr != nil {
		r.logger.Warn(ctx, "data error handlers failed", observe.ErrorField(herr))
	}
	return lerr
}
