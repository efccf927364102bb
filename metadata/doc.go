// Package metadata provides per-key bookkeeping for cached resources.
//
// Metadata is tracked independently of cached values: a key acquires a
// Metadata record the first time it is queried and keeps it until it is
// explicitly deleted.
package metadata
