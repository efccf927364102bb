package resource

import (
	"context"

	"github.com/jonwraymond/rescache/health"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/resilience"
)

// HealthChecker reports r as degraded while some keys hold a load failure
// and as unhealthy while its policy's circuit breaker is open.
func HealthChecker[K comparable, V any](name string, r *Resource[K, V]) health.Checker {
	return health.NewCheckerFunc(name, func(context.Context) health.Result {
		if cb := r.policy.CircuitBreaker(); cb != nil && cb.State() == resilience.StateOpen {
			return health.Unhealthy("loader circuit open", resilience.ErrCircuitOpen)
		}

		failing := 0
		var last error
		r.meta.Range(func(_ K, m metadata.Metadata) bool {
			if m.Exception != nil {
				failing++
				last = m.Exception
			}
			return true
		})
		details := map[string]any{
			"resource": r.name,
			"values":   r.storage.Len(),
			"failing":  failing,
		}
		if failing > 0 {
			return health.Degraded("some keys failed to load", last).WithDetails(details)
		}
		return health.Healthy("ok").WithDetails(details)
	})
}
