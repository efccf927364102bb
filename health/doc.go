// Package health reports the health of cache components.
//
// A Checker reports one component: a cached resource, the task info service
// or a resilience circuit breaker. An Aggregator runs several checkers in
// parallel and folds their results into one status.
//
//	agg := health.NewAggregator()
//	agg.Register("users", resource.HealthChecker("users", users))
//	agg.Register("tasks", service.HealthChecker())
//	agg.Register("users-backend", health.BreakerChecker("users-backend", policy.CircuitBreaker()))
//
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
package health
