package metadata

import (
	"slices"
	"time"
)

// Metadata is the bookkeeping record for one cache key.
type Metadata struct {
	// Outdated marks the value as stale; the next load re-fetches it.
	Outdated bool

	// Loading is true while a load covering the key is in flight.
	Loading bool

	// Includes lists the optional field sets the stored value was loaded with.
	Includes []string

	// Exception holds the last load failure, cleared on success.
	Exception error

	// Dependencies lists consumer handles pinning the key (tree resources).
	Dependencies []string

	// LoadedAt is when the value was last committed as fresh.
	LoadedAt time.Time
}

// Expired reports whether the value is older than maxAge at now. A zero
// maxAge never expires.
func (m Metadata) Expired(maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && !m.LoadedAt.IsZero() && now.Sub(m.LoadedAt) > maxAge
}

// Default returns the metadata of a never-loaded key: outdated, not loading.
func Default() Metadata {
	return Metadata{Outdated: true}
}

// HasIncludes reports whether every requested include is present.
func (m Metadata) HasIncludes(includes ...string) bool {
	for _, include := range includes {
		if !slices.Contains(m.Includes, include) {
			return false
		}
	}
	return true
}

// AddIncludes appends includes that are not yet present.
func (m *Metadata) AddIncludes(includes ...string) {
	for _, include := range includes {
		if !slices.Contains(m.Includes, include) {
			m.Includes = append(m.Includes, include)
		}
	}
}

// AddDependency records consumer as a dependency. Reports whether it was new.
func (m *Metadata) AddDependency(consumer string) bool {
	if slices.Contains(m.Dependencies, consumer) {
		return false
	}
	m.Dependencies = append(m.Dependencies, consumer)
	return true
}

// RemoveDependency drops consumer. Reports whether it was present.
func (m *Metadata) RemoveDependency(consumer string) bool {
	i := slices.Index(m.Dependencies, consumer)
	if i < 0 {
		return false
	}
	m.Dependencies = slices.Delete(m.Dependencies, i, i+1)
	return true
}

// Clone returns a deep copy safe to hand to callers.
func (m Metadata) Clone() Metadata {
	m.Includes = slices.Clone(m.Includes)
	m.Dependencies = slices.Clone(m.Dependencies)
	return m
}
