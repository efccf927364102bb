package resource

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/observe"
)

// ChildrenAliasID is the id of the alias addressing the children of a path.
const ChildrenAliasID = "children"

// NormalizePath returns p with a leading slash and no empty segments. The
// root is "".
func NormalizePath(p string) string {
	var b strings.Builder
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(seg)
	}
	return b.String()
}

func parentPath(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return ""
	}
	return p[:i]
}

// lineage returns p followed by each of its ancestors up to the root.
func lineage(p string) []string {
	out := []string{p}
	for p != "" {
		p = parentPath(p)
		out = append(out, p)
	}
	return out
}

// TreeStorage stores values by normalised path. Nodes live in a flat map and
// children are kept in a separate parent index, so a node never points at
// its parent.
type TreeStorage[V any] struct {
	mu       sync.RWMutex
	values   map[string]V
	children map[string][]string
}

// NewTreeStorage creates an empty tree.
func NewTreeStorage[V any]() *TreeStorage[V] {
	return &TreeStorage[V]{
		values:   make(map[string]V),
		children: make(map[string][]string),
	}
}

func (s *TreeStorage[V]) Get(p string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[NormalizePath(p)]
	return v, ok
}

// Set stores v at p, creating zero-valued ancestors that do not exist.
func (s *TreeStorage[V]) Set(p string, v V) {
	p = NormalizePath(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(p)
	s.values[p] = v
}

func (s *TreeStorage[V]) ensureLocked(p string) {
	if _, ok := s.values[p]; ok {
		return
	}
	var zero V
	s.values[p] = zero
	if p == "" {
		return
	}
	parent := parentPath(p)
	s.ensureLocked(parent)
	s.children[parent] = append(s.children[parent], p)
}

// Delete removes p and its subtree. Deleting the root removes every other
// node but keeps the root value.
func (s *TreeStorage[V]) Delete(p string) []string {
	p = NormalizePath(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[p]; !ok {
		return nil
	}
	if p == "" {
		var removed []string
		for _, child := range s.children[""] {
			removed = s.removeLocked(child, removed)
		}
		delete(s.children, "")
		return removed
	}

	parent := parentPath(p)
	if siblings := s.children[parent]; len(siblings) > 0 {
		if i := slices.Index(siblings, p); i >= 0 {
			s.children[parent] = slices.Delete(siblings, i, i+1)
		}
	}
	return s.removeLocked(p, nil)
}

func (s *TreeStorage[V]) removeLocked(p string, removed []string) []string {
	for _, child := range s.children[p] {
		removed = s.removeLocked(child, removed)
	}
	delete(s.children, p)
	delete(s.values, p)
	return append(removed, p)
}

// Keys returns every path in depth-first order, parents before children.
func (s *TreeStorage[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.values[""]; !ok {
		return nil
	}
	out := make([]string, 0, len(s.values))
	var walk func(p string)
	walk = func(p string) {
		out = append(out, p)
		for _, child := range s.children[p] {
			walk(child)
		}
	}
	walk("")
	return out
}

func (s *TreeStorage[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Children returns the direct children of p in insertion order.
func (s *TreeStorage[V]) Children(p string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.children[NormalizePath(p)])
}

// Tree is a path-addressed resource. Keys are "/"-delimited paths; the root
// is "".
type Tree[V any] struct {
	*Resource[string, V]

	nodes *TreeStorage[V]
}

// NewTree creates a tree resource. The loader receives normalised paths and
// should return values keyed the same way.
func NewTree[V any](loader Loader[string, V], opts ...Option) *Tree[V] {
	nodes := NewTreeStorage[V]()
	t := &Tree[V]{
		Resource: newResource[string, V](nodes, loader, observe.KindTree, opts),
		nodes:    nodes,
	}
	t.normalize = normalizeTreeKey

	children := func(alias key.Alias[string]) (key.ResourceKey[string], error) {
		return key.ListOf(nodes.Children(alias.StringOption("path"))...), nil
	}
	if err := t.AddAlias(ChildrenAliasID, children, Exhaustive()); err != nil {
		panic(err)
	}
	return t
}

func normalizeTreeKey(k key.ResourceKey[string]) key.ResourceKey[string] {
	switch k := k.(type) {
	case key.Flat[string]:
		return key.Of(NormalizePath(k.Value))
	case key.List[string]:
		items := make([]string, len(k.Items))
		for i, p := range k.Items {
			items[i] = NormalizePath(p)
		}
		return key.MarkedList(k.Mark, items...)
	}
	return k
}

// RootKey addresses the root value.
func (t *Tree[V]) RootKey() key.Flat[string] { return key.Of("") }

// RootChildrenKey addresses the top-level nodes.
func (t *Tree[V]) RootChildrenKey() key.Alias[string] { return t.ChildrenOf("") }

// ChildrenOf addresses the direct children of path. Loading it replaces
// them: children the loader no longer returns are deleted with their
// subtrees.
func (t *Tree[V]) ChildrenOf(path string) key.Alias[string] {
	return key.NewListAlias[string](ChildrenAliasID, map[string]any{"path": NormalizePath(path)})
}

// Get returns the value at path.
func (t *Tree[V]) Get(path string) (V, bool) {
	return t.nodes.Get(path)
}

// Set stores v at path, creating missing ancestors.
func (t *Tree[V]) Set(ctx context.Context, path string, v V) error {
	return t.Resource.Set(ctx, key.Of(path), v)
}

// Delete removes path and its subtree.
func (t *Tree[V]) Delete(ctx context.Context, path string) error {
	return t.Resource.Delete(ctx, key.Of(path))
}

// Children returns the paths directly below path.
func (t *Tree[V]) Children(path string) []string {
	return t.nodes.Children(path)
}

// Use pins path and every ancestor for consumer.
func (t *Tree[V]) Use(path, consumer string) {
	t.meta.UpdateAll(lineage(NormalizePath(path)), func(_ string, m *metadata.Metadata) {
		m.AddDependency(consumer)
	})
}

// Free releases the pins Use placed for consumer.
func (t *Tree[V]) Free(path, consumer string) {
	t.meta.UpdateAll(lineage(NormalizePath(path)), func(_ string, m *metadata.Metadata) {
		m.RemoveDependency(consumer)
	})
}

// IsUsed reports whether any consumer pins path.
func (t *Tree[V]) IsUsed(path string) bool {
	m, ok := t.meta.Peek(NormalizePath(path))
	return ok && len(m.Dependencies) > 0
}

var _ Storage[string, int] = (*TreeStorage[int])(nil)
