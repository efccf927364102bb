package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/rescache/event"
	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/observe"
	"github.com/jonwraymond/rescache/resilience"
	"github.com/jonwraymond/rescache/scheduler"
)

// LoadRequest describes one loader invocation.
type LoadRequest[K comparable] struct {
	// Key is the key being loaded, possibly an alias.
	Key key.ResourceKey[K]

	// Resolved is Key after alias resolution, taken before the load.
	Resolved key.ResourceKey[K]

	// Includes are the optional field sets requested.
	Includes []string

	// Refresh is true for unconditional reloads.
	Refresh bool
}

// Loader fetches the values addressed by a request. Keys absent from the
// result are treated as not found.
type Loader[K comparable, V any] func(ctx context.Context, req LoadRequest[K]) (map[K]V, error)

// AliasOption configures an alias registered with AddAlias.
type AliasOption func(*aliasConfig)

type aliasConfig struct {
	exhaustive bool
}

// Exhaustive marks an alias whose load returns the complete set it
// addresses. Keys it resolved to before the load and missing from the
// result are deleted.
func Exhaustive() AliasOption {
	return func(c *aliasConfig) { c.exhaustive = true }
}

// Outdater is anything that can be marked outdated as a whole.
type Outdater interface {
	MarkOutdatedAll(ctx context.Context) error
}

type flightKey[K comparable] struct {
	key      key.ResourceKey[K]
	resolved key.ResourceKey[K]
}

type outcome[K comparable] struct {
	refreshed bool
	// fetched is the resolved key the flight covered.
	fetched key.ResourceKey[K]
}

// Resource is a keyed cache of values fetched by a Loader.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Loading: at most one loader call runs for overlapping keys; callers
// with overlapping keys wait for it and share its outcome.
// - Events: handlers run on the caller's goroutine without resource locks
// held and may call back into the resource.
type Resource[K comparable, V any] struct {
	name    string
	kind    string
	storage Storage[K, V]
	loader  Loader[K, V]

	meta      *metadata.Store[K]
	aliasMeta *metadata.Store[string]
	aliases   *key.Resolver[K]
	sched     *scheduler.Scheduler[flightKey[K], outcome[K]]

	policy      *resilience.Policy
	mw          *observe.Middleware
	logger      observe.Logger
	loadThrough func(K) key.ResourceKey[K]
	maxAge      time.Duration
	now         func() time.Time
	normalize   func(key.ResourceKey[K]) key.ResourceKey[K]

	// OnDataOutdated fires after keys are marked outdated.
	OnDataOutdated *event.Executor[key.ResourceKey[K]]
	// OnDataUpdate fires after values are committed.
	OnDataUpdate *event.Executor[key.ResourceKey[K]]
	// OnDataError fires after a loader call fails.
	OnDataError *event.Executor[*LoaderError]

	itemAdd    *event.Executor[key.ResourceKey[K]]
	itemDelete *event.Executor[key.ResourceKey[K]]

	// mu serialises writes to storage and metadata so a commit is atomic
	// with respect to other commits.
	mu         sync.Mutex
	exhaustive map[string]bool
}

// New creates a resource over storage. A nil storage uses MemoryStorage.
func New[K comparable, V any](storage Storage[K, V], loader Loader[K, V], opts ...Option) *Resource[K, V] {
	return newResource(storage, loader, "", opts)
}

func newResource[K comparable, V any](storage Storage[K, V], loader Loader[K, V], kind string, opts []Option) *Resource[K, V] {
	o := &options{name: "resource"}
	for _, opt := range opts {
		opt(o)
	}
	if storage == nil {
		storage = NewMemoryStorage[K, V]()
	}

	r := &Resource[K, V]{
		name:        o.name,
		kind:        kind,
		storage:     storage,
		loader:      loader,
		meta:        metadata.NewStore[K](o.factory),
		aliasMeta:   metadata.NewStore[string](o.factory),
		aliases:     key.NewResolver[K](),
		policy:      o.policy,
		loadThrough: loadThroughFor[K](o),
		maxAge:      o.maxAge,
		now:         time.Now,
		exhaustive:  make(map[string]bool),
		OnDataError: event.New[*LoaderError](),
	}
	r.sched = scheduler.New[flightKey[K], outcome[K]](r.flightsOverlap)
	r.OnDataOutdated = event.New(event.WithFilter(r.Intersects))
	r.OnDataUpdate = event.New(event.WithFilter(r.Intersects))

	r.mw = o.middleware
	if r.mw == nil && o.observer != nil {
		mw, err := observe.MiddlewareFromObserver(o.observer)
		if err == nil {
			r.mw = mw
		}
	}
	if r.mw == nil {
		r.mw = observe.NewMiddleware(nil, nil, o.logger)
	}

	logger := o.logger
	if logger == nil {
		logger = r.mw.Logger()
	}
	r.logger = logger.WithResource(r.telemetry())
	return r
}

func (r *Resource[K, V]) telemetry() observe.ResourceMeta {
	return observe.ResourceMeta{Name: r.name, Kind: r.kind}
}

// Name returns the resource name.
func (r *Resource[K, V]) Name() string { return r.name }

// Policy returns the loader policy, or nil.
func (r *Resource[K, V]) Policy() *resilience.Policy { return r.policy }

// Aliases returns the alias registry.
func (r *Resource[K, V]) Aliases() *key.Resolver[K] { return r.aliases }

// AddAlias registers an alias resolver.
func (r *Resource[K, V]) AddAlias(id string, fn key.ResolveFunc[K], opts ...AliasOption) error {
	var cfg aliasConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := r.aliases.Register(id, fn); err != nil {
		return fmt.Errorf("resource %s: %w", r.name, err)
	}
	r.mu.Lock()
	r.exhaustive[id] = cfg.exhaustive
	r.mu.Unlock()
	return nil
}

func (r *Resource[K, V]) isExhaustive(k key.ResourceKey[K]) bool {
	alias, ok := k.(key.Alias[K])
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhaustive[alias.ID]
}

func (r *Resource[K, V]) norm(k key.ResourceKey[K]) key.ResourceKey[K] {
	if r.normalize == nil || k == nil {
		return k
	}
	return r.normalize(k)
}

// Resolve follows aliases until k is a flat key or a list.
func (r *Resource[K, V]) Resolve(k key.ResourceKey[K]) (key.ResourceKey[K], error) {
	resolved, err := r.aliases.Resolve(r.norm(k))
	if err != nil {
		return nil, err
	}
	return r.norm(resolved), nil
}

// Intersects reports whether a and b address a common key. Equal aliases
// intersect without being resolved; unresolvable keys intersect nothing.
func (r *Resource[K, V]) Intersects(a, b key.ResourceKey[K]) bool {
	if aa, ok := a.(key.Alias[K]); ok {
		if ba, ok := b.(key.Alias[K]); ok && aa.Equal(ba) {
			return true
		}
	}
	ra, err := r.Resolve(a)
	if err != nil {
		return false
	}
	rb, err := r.Resolve(b)
	if err != nil {
		return false
	}
	return key.Includes(ra, rb)
}

func (r *Resource[K, V]) flightsOverlap(a, b flightKey[K]) bool {
	if aa, ok := a.key.(key.Alias[K]); ok {
		if ba, ok := b.key.(key.Alias[K]); ok && aa.Equal(ba) {
			return true
		}
	}
	return key.Includes(a.resolved, b.resolved)
}

// IsLoaded reports whether every key k addresses holds a value loaded with
// all of includes.
func (r *Resource[K, V]) IsLoaded(k key.ResourceKey[K], includes ...string) bool {
	k = r.norm(k)
	resolved, err := r.Resolve(k)
	if err != nil {
		return false
	}
	if alias, ok := k.(key.Alias[K]); ok {
		m, ok := r.aliasMeta.Peek(alias.Fingerprint())
		if !ok || m.LoadedAt.IsZero() || !m.HasIncludes(includes...) {
			return false
		}
	}
	return key.Every(resolved, func(v K, _ int) bool {
		if _, ok := r.storage.Get(v); !ok {
			return false
		}
		m, ok := r.meta.Peek(v)
		return ok && m.HasIncludes(includes...)
	})
}

// IsOutdated reports whether any key k addresses is outdated, expired or
// unknown.
func (r *Resource[K, V]) IsOutdated(k key.ResourceKey[K]) bool {
	k = r.norm(k)
	now := r.now()
	if alias, ok := k.(key.Alias[K]); ok {
		m, ok := r.aliasMeta.Peek(alias.Fingerprint())
		if !ok || m.Outdated || m.Expired(r.maxAge, now) {
			return true
		}
	}
	resolved, err := r.Resolve(k)
	if err != nil {
		return true
	}
	return key.Some(resolved, func(v K, _ int) bool {
		m, ok := r.meta.Peek(v)
		return !ok || m.Outdated || m.Expired(r.maxAge, now)
	})
}

func (r *Resource[K, V]) fresh(k key.ResourceKey[K], includes []string) bool {
	return r.IsLoaded(k, includes...) && !r.IsOutdated(k)
}

// IsLoading reports whether a load covering k is in flight.
func (r *Resource[K, V]) IsLoading(k key.ResourceKey[K]) bool {
	k = r.norm(k)
	if alias, ok := k.(key.Alias[K]); ok {
		if m, ok := r.aliasMeta.Peek(alias.Fingerprint()); ok && m.Loading {
			return true
		}
	}
	resolved, err := r.Resolve(k)
	if err != nil {
		return false
	}
	return key.Some(resolved, func(v K, _ int) bool {
		m, ok := r.meta.Peek(v)
		return ok && m.Loading
	})
}

// Metadata returns the metadata of a flat key, creating the default record.
func (r *Resource[K, V]) Metadata(k K) metadata.Metadata {
	return r.meta.Get(r.flat(k))
}

// Error returns the last load failure stored for k.
func (r *Resource[K, V]) Error(k K) error {
	m, ok := r.meta.Peek(r.flat(k))
	if !ok {
		return nil
	}
	return m.Exception
}

func (r *Resource[K, V]) flat(k K) K {
	if f, ok := r.norm(key.Of(k)).(key.Flat[K]); ok {
		return f.Value
	}
	return k
}

// Value returns the stored value of one flat key.
func (r *Resource[K, V]) Value(k K) (V, bool) {
	return r.storage.Get(r.flat(k))
}

// Get returns the stored values k addresses, in key order. Missing keys are
// skipped.
func (r *Resource[K, V]) Get(k key.ResourceKey[K]) ([]V, error) {
	resolved, err := r.Resolve(k)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, key.Count(resolved))
	key.ForEach(resolved, func(v K, _ int) {
		if val, ok := r.storage.Get(v); ok {
			out = append(out, val)
		}
	})
	return out, nil
}

// Has reports whether every key k addresses holds a value.
func (r *Resource[K, V]) Has(k key.ResourceKey[K]) bool {
	resolved, err := r.Resolve(k)
	if err != nil {
		return false
	}
	return key.Every(resolved, func(v K, _ int) bool {
		_, ok := r.storage.Get(v)
		return ok
	})
}

// Keys returns the stored keys.
func (r *Resource[K, V]) Keys() []K {
	return r.storage.Keys()
}

// Len returns the number of stored values.
func (r *Resource[K, V]) Len() int {
	return r.storage.Len()
}

// Set stores values for the keys k addresses, one value per key in order.
// Metadata is left alone: a key that was never loaded stays outdated.
func (r *Resource[K, V]) Set(ctx context.Context, k key.ResourceKey[K], values ...V) error {
	resolved, err := r.Resolve(k)
	if err != nil {
		return err
	}
	keys := key.ToSlice(resolved)
	if len(keys) == 0 {
		return ErrAliasWrite
	}
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", ErrValueCount, len(keys), len(values))
	}

	r.mu.Lock()
	for i, kk := range keys {
		r.storage.Set(kk, values[i])
	}
	r.mu.Unlock()

	return r.afterWrite(ctx, key.ListOf(keys...), keys, nil)
}

// Delete removes the values and metadata of the keys k addresses.
func (r *Resource[K, V]) Delete(ctx context.Context, k key.ResourceKey[K]) error {
	resolved, err := r.Resolve(k)
	if err != nil {
		return err
	}

	r.mu.Lock()
	removed := r.deleteLocked(key.ToSlice(resolved))
	r.mu.Unlock()

	return r.afterWrite(ctx, nil, nil, removed)
}

func (r *Resource[K, V]) deleteLocked(keys []K) []K {
	var removed []K
	for _, k := range keys {
		gone := r.storage.Delete(k)
		r.meta.Delete(k)
		for _, g := range gone {
			r.meta.Delete(g)
		}
		removed = append(removed, gone...)
	}
	return removed
}

// afterWrite fires the item and update events for a write.
func (r *Resource[K, V]) afterWrite(ctx context.Context, updated key.ResourceKey[K], added, removed []K) error {
	var errs []error
	if len(removed) > 0 && r.itemDelete != nil {
		errs = append(errs, r.itemDelete.Execute(ctx, key.ListOf(removed...)))
	}
	if len(added) > 0 && r.itemAdd != nil {
		errs = append(errs, r.itemAdd.Execute(ctx, key.ListOf(added...)))
	}
	if updated != nil {
		errs = append(errs, r.OnDataUpdate.Execute(ctx, updated))
	}
	return errors.Join(errs...)
}

// MarkUpdated marks the keys k addresses as fresh without loading them.
func (r *Resource[K, V]) MarkUpdated(ctx context.Context, k key.ResourceKey[K]) error {
	k = r.norm(k)
	resolved, err := r.Resolve(k)
	if err != nil {
		return err
	}
	now := r.now()
	fresh := func(m *metadata.Metadata) {
		m.Outdated = false
		m.Exception = nil
		m.LoadedAt = now
	}
	r.mu.Lock()
	r.meta.UpdateAll(key.ToSlice(resolved), func(_ K, m *metadata.Metadata) { fresh(m) })
	if alias, ok := k.(key.Alias[K]); ok {
		r.aliasMeta.Update(alias.Fingerprint(), fresh)
	}
	r.mu.Unlock()
	return nil
}

// MarkUpdatedAll marks every known key as fresh.
func (r *Resource[K, V]) MarkUpdatedAll(ctx context.Context) error {
	return r.MarkUpdated(ctx, key.ListOf(r.knownKeys()...))
}

func (r *Resource[K, V]) knownKeys() []K {
	keys := r.storage.Keys()
	seen := make(map[K]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range r.meta.Keys() {
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	return keys
}

var _ Outdater = (*Resource[string, int])(nil)
