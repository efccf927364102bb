// Package key provides the key algebra for cached resources.
//
// A ResourceKey addresses cache slots in one of three shapes: a single Flat
// key, an ordered List of keys, or a symbolic Alias that is resolved against
// live cache state by a Resolver registered on the owning resource.
//
// All set-like operations (ForEach, Map, Some, Every, Includes, Exclude,
// Join) are implemented once over the sealed ResourceKey sum, so the
// scheduler's collision test and the event filter share the same overlap
// semantics.
//
// # Usage
//
//	k := key.ListOf("alice", "bob")
//	key.Includes[string](k, key.Of("bob")) // true
//
//	r := key.NewResolver[string]()
//	_ = r.Register("users:all", func(a key.Alias[string]) (key.ResourceKey[string], error) {
//	    return key.ListOf(currentUsers()...), nil
//	})
//	resolved, err := r.Resolve(key.NewListAlias[string]("users:all", nil))
package key
