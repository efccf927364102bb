package resource

import (
	"context"
	"fmt"

	"github.com/jonwraymond/rescache/event"
	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/observe"
)

// AllAliasID is the id of the alias addressing every entry of a Map.
const AllAliasID = "all"

// Entry is one key/value pair of a Map.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is a flat key to value resource.
//
// OnItemAdd and OnItemDelete fire with the affected keys after every
// mutation, including loads. Loading AllKey replaces the whole map: entries
// the loader no longer returns are deleted.
type Map[K comparable, V any] struct {
	*Resource[K, V]

	OnItemAdd    *event.Executor[key.ResourceKey[K]]
	OnItemDelete *event.Executor[key.ResourceKey[K]]
}

// NewMap creates a map resource backed by MemoryStorage.
func NewMap[K comparable, V any](loader Loader[K, V], opts ...Option) *Map[K, V] {
	m := &Map[K, V]{
		Resource:     newResource[K, V](nil, loader, observe.KindMap, opts),
		OnItemAdd:    event.New(event.WithFilter(key.Includes[K])),
		OnItemDelete: event.New(event.WithFilter(key.Includes[K])),
	}
	m.itemAdd = m.OnItemAdd
	m.itemDelete = m.OnItemDelete

	all := func(key.Alias[K]) (key.ResourceKey[K], error) {
		return key.ListOf(m.storage.Keys()...), nil
	}
	if err := m.AddAlias(AllAliasID, all, Exhaustive()); err != nil {
		panic(err)
	}
	return m
}

// AllKey addresses every entry currently in the map.
func (m *Map[K, V]) AllKey() key.Alias[K] {
	return key.NewListAlias[K](AllAliasID, nil)
}

// Replace stores values for keys, one per key, and marks them fresh as if
// they had just been loaded.
func (m *Map[K, V]) Replace(ctx context.Context, keys []K, values []V) error {
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", ErrValueCount, len(keys), len(values))
	}
	now := m.now()

	m.mu.Lock()
	for i, k := range keys {
		m.storage.Set(k, values[i])
	}
	m.meta.UpdateAll(keys, func(_ K, md *metadata.Metadata) {
		md.Outdated = false
		md.Exception = nil
		md.LoadedAt = now
	})
	m.mu.Unlock()

	return m.afterWrite(ctx, key.ListOf(keys...), keys, nil)
}

// Values returns the stored values in key order.
func (m *Map[K, V]) Values() []V {
	entries := m.Entries()
	out := make([]V, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Entries returns the stored key/value pairs in key order.
func (m *Map[K, V]) Entries() []Entry[K, V] {
	keys := m.storage.Keys()
	out := make([]Entry[K, V], 0, len(keys))
	for _, k := range keys {
		if v, ok := m.storage.Get(k); ok {
			out = append(out, Entry[K, V]{Key: k, Value: v})
		}
	}
	return out
}
