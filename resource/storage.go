package resource

import (
	"slices"
	"sync"
)

// Storage holds the values of a resource.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Delete returns every key it removed, which may be more than the one
// asked for when values form a hierarchy.
type Storage[K comparable, V any] interface {
	Get(k K) (V, bool)
	Set(k K, v V)
	Delete(k K) []K
	Keys() []K
	Len() int
}

// MemoryStorage is a map-backed Storage that remembers insertion order.
type MemoryStorage[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
	order  []K
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage[K comparable, V any]() *MemoryStorage[K, V] {
	return &MemoryStorage[K, V]{values: make(map[K]V)}
}

func (s *MemoryStorage[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[k]
	return v, ok
}

func (s *MemoryStorage[K, V]) Set(k K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[k]; !ok {
		s.order = append(s.order, k)
	}
	s.values[k] = v
}

func (s *MemoryStorage[K, V]) Delete(k K) []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[k]; !ok {
		return nil
	}
	delete(s.values, k)
	if i := slices.Index(s.order, k); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return []K{k}
}

// Keys returns the keys in insertion order.
func (s *MemoryStorage[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

func (s *MemoryStorage[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

var _ Storage[string, int] = (*MemoryStorage[string, int])(nil)
