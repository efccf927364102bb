// Package resilience guards loader and transport calls made by cached
// resources.
//
// A Policy composes the patterns below around one backend call:
//
//   - Bulkhead: caps how many loader calls run at once.
//   - CircuitBreaker: stops calling a backend that keeps failing.
//   - Retry: retries failed calls with exponential, linear or constant backoff.
//   - RateLimiter: spaces out individual attempts.
//   - Timeout: bounds each attempt.
//
// Usage:
//
//	policy, err := resilience.NewPolicy(resilience.PolicyConfig{
//	    Timeout:       2 * time.Second,
//	    Retry:         &resilience.RetryConfig{MaxAttempts: 3},
//	    MaxConcurrent: 4,
//	})
//	if err != nil {
//	    return err
//	}
//
//	users, err := resilience.Call(ctx, policy, func(ctx context.Context) ([]User, error) {
//	    return api.ListUsers(ctx)
//	})
//
// A nil *Policy runs calls unguarded.
package resilience
