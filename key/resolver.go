package key

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MaxAliasDepth bounds chains of aliases resolving to aliases.
const MaxAliasDepth = 16

// ResolveFunc translates an alias into a concrete key (or another alias).
type ResolveFunc[K comparable] func(alias Alias[K]) (ResourceKey[K], error)

// Resolver is the registry of alias resolvers owned by one resource.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: resolving an unregistered alias returns *AliasResolutionError.
type Resolver[K comparable] struct {
	mu       sync.RWMutex
	handlers map[string]ResolveFunc[K]
}

// NewResolver creates an empty resolver registry.
func NewResolver[K comparable]() *Resolver[K] {
	return &Resolver[K]{handlers: make(map[string]ResolveFunc[K])}
}

// Register binds fn to alias id.
func (r *Resolver[K]) Register(id string, fn ResolveFunc[K]) error {
	id = strings.TrimSpace(id)
	if id == "" || fn == nil {
		return ErrInvalidAlias
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[id]; exists {
		return fmt.Errorf("%w: %q", ErrAliasExists, id)
	}
	r.handlers[id] = fn
	return nil
}

// Has reports whether id has a resolver.
func (r *Resolver[K]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[id]
	return ok
}

// IDs returns the registered alias ids, sorted.
func (r *Resolver[K]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns k unchanged when it is Flat or List, and otherwise follows
// the alias chain until it reaches a concrete key.
func (r *Resolver[K]) Resolve(k ResourceKey[K]) (ResourceKey[K], error) {
	for depth := 0; ; depth++ {
		alias, ok := k.(Alias[K])
		if !ok {
			return k, nil
		}
		if depth >= MaxAliasDepth {
			return nil, &AliasResolutionError{Alias: alias.String(), Err: ErrAliasDepth}
		}

		r.mu.RLock()
		fn, ok := r.handlers[alias.ID]
		r.mu.RUnlock()
		if !ok {
			return nil, &AliasResolutionError{Alias: alias.String(), Err: ErrNoResolver}
		}

		next, err := fn(alias)
		if err != nil {
			return nil, &AliasResolutionError{Alias: alias.String(), Err: err}
		}
		if next == nil {
			return nil, &AliasResolutionError{Alias: alias.String(), Err: ErrNoResolver}
		}
		k = next
	}
}
