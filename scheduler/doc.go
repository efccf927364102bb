// Package scheduler serializes and deduplicates asynchronous operations.
//
// Operations are keyed, and two keys collide when the injected overlap
// predicate says so. A Schedule call whose key overlaps an operation already
// in flight does not start its own operation: it joins the running one and
// receives the same result. This is the single-flight guarantee resources
// build their load pipeline on.
package scheduler
