package metadata

import "sync"

// Factory creates the metadata for a key seen for the first time.
type Factory func() Metadata

// Store is a lazily populated mapping from key to Metadata.
//
// Contract:
// - Concurrency: safe for concurrent use; callers receive copies.
// - Lifetime: entries are only removed by Delete or Clear.
type Store[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*Metadata
	factory Factory
}

// NewStore creates a store. A nil factory uses Default.
func NewStore[K comparable](factory Factory) *Store[K] {
	if factory == nil {
		factory = Default
	}
	return &Store[K]{
		entries: make(map[K]*Metadata),
		factory: factory,
	}
}

// getLocked returns the entry for key, creating it if needed. Caller must hold mu.
func (s *Store[K]) getLocked(key K) *Metadata {
	m, ok := s.entries[key]
	if !ok {
		created := s.factory()
		m = &created
		s.entries[key] = m
	}
	return m
}

// Get returns the metadata for key, creating the default record if absent.
func (s *Store[K]) Get(key K) Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key).Clone()
}

// Peek returns the metadata for key without creating it.
func (s *Store[K]) Peek(key K) (Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.entries[key]
	if !ok {
		return Metadata{}, false
	}
	return m.Clone(), true
}

// Update applies fn to the metadata for key, creating it if absent.
func (s *Store[K]) Update(key K, fn func(*Metadata)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.getLocked(key))
}

// UpdateAll applies fn to every given key under one lock acquisition.
func (s *Store[K]) UpdateAll(keys []K, fn func(K, *Metadata)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		fn(key, s.getLocked(key))
	}
}

// Has reports whether key has a record.
func (s *Store[K]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Delete removes the record for key. Idempotent.
func (s *Store[K]) Delete(key K) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes every record.
func (s *Store[K]) Clear() {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()
}

// Keys returns a snapshot of the keys with a record.
func (s *Store[K]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]K, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of records.
func (s *Store[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Range calls fn with a copy of every record until fn returns false. fn runs
// without the store lock held.
func (s *Store[K]) Range(fn func(K, Metadata) bool) {
	s.mu.Lock()
	keys := make([]K, 0, len(s.entries))
	snap := make([]Metadata, 0, len(s.entries))
	for k, m := range s.entries {
		keys = append(keys, k)
		snap = append(snap, m.Clone())
	}
	s.mu.Unlock()

	for i, k := range keys {
		if !fn(k, snap[i]) {
			return
		}
	}
}
