package key

import (
	"context"
)

// NotAList is the index passed to iteration callbacks for a Flat key.
const NotAList = -1

// ForEach calls fn once for a Flat key (index NotAList) or once per element
// of a List, left to right. Aliases are skipped; resolve them first.
func ForEach[K comparable](k ResourceKey[K], fn func(v K, index int)) {
	switch kv := k.(type) {
	case Flat[K]:
		fn(kv.Value, NotAList)
	case List[K]:
		for i, item := range kv.Items {
			fn(item, i)
		}
	}
}

// ForEachAsync is ForEach for blocking callbacks. Elements are visited
// sequentially; iteration stops at the first error or when ctx is done.
func ForEachAsync[K comparable](ctx context.Context, k ResourceKey[K], fn func(ctx context.Context, v K, index int) error) error {
	switch kv := k.(type) {
	case Flat[K]:
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, kv.Value, NotAList)
	case List[K]:
		for i, item := range kv.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, item, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mapped is the shape-preserving result of Map.
type Mapped[R any] struct {
	Value  R   // set for a Flat input
	Values []R // set for a List input
	IsList bool
}

// All returns the mapped values as a slice regardless of shape.
func (m Mapped[R]) All() []R {
	if m.IsList {
		return m.Values
	}
	return []R{m.Value}
}

// Map applies fn to every key, mirroring the input shape.
func Map[K comparable, R any](k ResourceKey[K], fn func(v K, index int) R) Mapped[R] {
	switch kv := k.(type) {
	case Flat[K]:
		return Mapped[R]{Value: fn(kv.Value, NotAList)}
	case List[K]:
		out := make([]R, len(kv.Items))
		for i, item := range kv.Items {
			out[i] = fn(item, i)
		}
		return Mapped[R]{Values: out, IsList: true}
	default:
		return Mapped[R]{}
	}
}

// Some reports whether fn holds for at least one key.
func Some[K comparable](k ResourceKey[K], fn func(v K, index int) bool) bool {
	switch kv := k.(type) {
	case Flat[K]:
		return fn(kv.Value, NotAList)
	case List[K]:
		for i, item := range kv.Items {
			if fn(item, i) {
				return true
			}
		}
	}
	return false
}

// Every reports whether fn holds for all keys. An empty List satisfies Every.
func Every[K comparable](k ResourceKey[K], fn func(v K, index int) bool) bool {
	switch kv := k.(type) {
	case Flat[K]:
		return fn(kv.Value, NotAList)
	case List[K]:
		for i, item := range kv.Items {
			if !fn(item, i) {
				return false
			}
		}
		return true
	}
	return false
}

// Includes is the symmetric overlap test used by the scheduler and by event
// filters: two keys overlap when they share at least one element. Aliases
// never overlap here; resolve them first.
func Includes[K comparable](a, b ResourceKey[K]) bool {
	switch av := a.(type) {
	case Flat[K]:
		switch bv := b.(type) {
		case Flat[K]:
			return av.Value == bv.Value
		case List[K]:
			return bv.Contains(av.Value)
		}
	case List[K]:
		switch bv := b.(type) {
		case Flat[K]:
			return av.Contains(bv.Value)
		case List[K]:
			if len(av.Items) > len(bv.Items) {
				av, bv = bv, av
			}
			for _, item := range av.Items {
				if bv.Contains(item) {
					return true
				}
			}
		}
	}
	return false
}

// Exclude returns list without the elements matched by k. The mark is kept.
func Exclude[K comparable](list List[K], k ResourceKey[K]) List[K] {
	out := make([]K, 0, len(list.Items))
	for _, item := range list.Items {
		if !Includes[K](Of(item), k) {
			out = append(out, item)
		}
	}
	return List[K]{Items: out, Mark: list.Mark}
}

// Join flattens keys into one List, preserving order and duplicates.
// Aliases are skipped.
func Join[K comparable](keys ...ResourceKey[K]) List[K] {
	var out []K
	for _, k := range keys {
		ForEach(k, func(v K, _ int) {
			out = append(out, v)
		})
	}
	return List[K]{Items: out}
}

// ToSlice returns the keys addressed by k. Aliases yield nil.
func ToSlice[K comparable](k ResourceKey[K]) []K {
	switch kv := k.(type) {
	case Flat[K]:
		return []K{kv.Value}
	case List[K]:
		return kv.Items
	}
	return nil
}

// Count returns the number of keys addressed by k.
func Count[K comparable](k ResourceKey[K]) int {
	switch kv := k.(type) {
	case Flat[K]:
		return 1
	case List[K]:
		return len(kv.Items)
	}
	return 0
}
