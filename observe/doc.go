// Package observe provides observability primitives for cached resources
// and the task polling service.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. Resources and the task service accept an Observer
// (or a Middleware built from one) and report loads, joins, outdating and
// poll ticks through it.
package observe
