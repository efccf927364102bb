package key

import (
	"fmt"
	"strings"
)

// ResourceKey is the closed sum of key shapes: Flat, List and Alias.
//
// The marker method is unexported, so no other package can add variants and
// every algebra function can switch exhaustively over the three shapes.
type ResourceKey[K comparable] interface {
	resourceKey(K)
	String() string
}

// Flat addresses exactly one cache slot.
type Flat[K comparable] struct {
	Value K
}

// Of returns a Flat key.
func Of[K comparable](v K) Flat[K] {
	return Flat[K]{Value: v}
}

func (Flat[K]) resourceKey(K) {}

func (k Flat[K]) String() string {
	return fmt.Sprint(k.Value)
}

// List is an ordered selection of keys. Mark is an opaque tag identifying the
// selection across calls independent of its contents.
type List[K comparable] struct {
	Items []K
	Mark  any
}

// ListOf returns an unmarked List.
func ListOf[K comparable](items ...K) List[K] {
	return List[K]{Items: items}
}

// MarkedList returns a List tagged with mark.
func MarkedList[K comparable](mark any, items ...K) List[K] {
	return List[K]{Items: items, Mark: mark}
}

func (List[K]) resourceKey(K) {}

func (l List[K]) String() string {
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = fmt.Sprint(item)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Len returns the number of items.
func (l List[K]) Len() int {
	return len(l.Items)
}

// Contains reports whether v is an element of l.
func (l List[K]) Contains(v K) bool {
	for _, item := range l.Items {
		if item == v {
			return true
		}
	}
	return false
}

// SameMembers reports whether l and other hold the same set of keys,
// ignoring order, duplicates and marks.
func (l List[K]) SameMembers(other List[K]) bool {
	a := make(map[K]struct{}, len(l.Items))
	for _, item := range l.Items {
		a[item] = struct{}{}
	}
	b := make(map[K]struct{}, len(other.Items))
	for _, item := range other.Items {
		if _, ok := a[item]; !ok {
			return false
		}
		b[item] = struct{}{}
	}
	return len(a) == len(b)
}

// IsList reports whether k is a List.
func IsList[K comparable](k ResourceKey[K]) bool {
	_, ok := k.(List[K])
	return ok
}

// IsAlias reports whether k is an Alias.
func IsAlias[K comparable](k ResourceKey[K]) bool {
	_, ok := k.(Alias[K])
	return ok
}

// Equal reports whether a and b address the same slots. Flat keys compare by
// value, lists by membership, aliases by Alias.Equal. Different shapes are
// never equal.
func Equal[K comparable](a, b ResourceKey[K]) bool {
	switch av := a.(type) {
	case Flat[K]:
		bv, ok := b.(Flat[K])
		return ok && av.Value == bv.Value
	case List[K]:
		bv, ok := b.(List[K])
		return ok && av.SameMembers(bv)
	case Alias[K]:
		bv, ok := b.(Alias[K])
		return ok && av.Equal(bv)
	default:
		return false
	}
}
