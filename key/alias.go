package key

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Alias is a symbolic key resolved lazily against current cache contents.
//
// An alias resolving to a List is a list alias (see NewListAlias). Parent
// chains aliases, e.g. "children of the alias X".
type Alias[K comparable] struct {
	ID      string
	Options map[string]any
	Parent  *Alias[K]
	list    bool
}

// NewAlias returns an alias that resolves to a single key.
func NewAlias[K comparable](id string, options map[string]any) Alias[K] {
	return Alias[K]{ID: id, Options: options}
}

// NewListAlias returns an alias that resolves to a List.
func NewListAlias[K comparable](id string, options map[string]any) Alias[K] {
	return Alias[K]{ID: id, Options: options, list: true}
}

func (Alias[K]) resourceKey(K) {}

// IsList reports whether the alias resolves to a list.
func (a Alias[K]) IsList() bool {
	return a.list
}

// Child returns a new alias whose parent is a.
func (a Alias[K]) Child(id string, options map[string]any, list bool) Alias[K] {
	parent := a
	return Alias[K]{ID: id, Options: options, Parent: &parent, list: list}
}

// Option returns the option value stored under name.
func (a Alias[K]) Option(name string) (any, bool) {
	v, ok := a.Options[name]
	return v, ok
}

// StringOption returns the option stored under name if it is a string.
func (a Alias[K]) StringOption(name string) string {
	s, _ := a.Options[name].(string)
	return s
}

// String renders the alias chain, e.g. "@tree:children(path=/a)".
func (a Alias[K]) String() string {
	var b strings.Builder
	if a.Parent != nil {
		b.WriteString(a.Parent.String())
		b.WriteString(" > ")
	}
	b.WriteString("@")
	b.WriteString(a.ID)
	if len(a.Options) > 0 {
		names := make([]string, 0, len(a.Options))
		for name := range a.Options {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("(")
		for i, name := range names {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%s=%v", name, a.Options[name])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Equal reports whether a and other share id, deep-equal options and equal
// parent chains.
func (a Alias[K]) Equal(other Alias[K]) bool {
	if a.ID != other.ID || a.list != other.list {
		return false
	}
	return a.Fingerprint() == other.Fingerprint()
}

// Fingerprint returns a deterministic identifier for the alias chain.
// Format: alias:<id>:<hash>
// where hash is the first 16 hex characters of SHA-256 over the canonical
// JSON of the options and the parent fingerprint.
func (a Alias[K]) Fingerprint() string {
	var parent string
	if a.Parent != nil {
		parent = a.Parent.Fingerprint()
	}

	canonical, err := canonicalize(map[string]any{
		"list":    a.list,
		"options": a.Options,
		"parent":  parent,
	})
	if err != nil {
		// Options that cannot be encoded fall back to their printed form.
		canonical = []byte(fmt.Sprintf("%v|%v|%s", a.list, a.Options, parent))
	}

	hash := sha256.Sum256(canonical)
	return "alias:" + a.ID + ":" + hex.EncodeToString(hash[:8])
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key so option order never affects equality.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("null"), nil
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := []byte("{")
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		nameBytes, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		out = append(out, nameBytes...)
		out = append(out, ':')

		valBytes, err := canonicalize(m[name])
		if err != nil {
			return nil, err
		}
		out = append(out, valBytes...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte("[")
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, valBytes...)
	}
	return append(out, ']'), nil
}
