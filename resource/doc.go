// Package resource provides reactive cached resources: in-memory caches of
// remote data that load on demand, join overlapping fetches, and propagate
// invalidation.
//
// Three topologies are built on the same Resource base:
//
//   - Map: flat key to value, with an "all" alias addressing every entry.
//   - Data: a single unkeyed value.
//   - Tree: "/"-delimited paths, with aliases for the children of a path.
//
// A key is fetched at most once until it is marked outdated, expires, or is
// requested with includes it was not loaded with:
//
//	users := resource.NewMap(func(ctx context.Context, req resource.LoadRequest[string]) (map[string]User, error) {
//	    return api.FetchUsers(ctx, key.ToSlice(req.Resolved))
//	}, resource.WithName("users"))
//
//	alice, err := users.Load(ctx, key.Of("alice"))
//
// Outdating is lazy: MarkOutdated fires OnDataOutdated and the next Load
// fetches. Connect chains outdating across resources.
//
// Loader failures come back as *LoaderError, which matches ErrLoader with
// errors.Is and carries a MarkOutdated hook for retry actions. Unresolvable
// aliases fail before the loader is called with *key.AliasResolutionError.
package resource
