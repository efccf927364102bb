package resource

import (
	"fmt"
	"time"

	"github.com/jonwraymond/rescache/key"
	"github.com/jonwraymond/rescache/metadata"
	"github.com/jonwraymond/rescache/observe"
	"github.com/jonwraymond/rescache/resilience"
)

type options struct {
	name        string
	factory     metadata.Factory
	logger      observe.Logger
	observer    observe.Observer
	middleware  *observe.Middleware
	policy      *resilience.Policy
	loadThrough any
	maxAge      time.Duration
}

// Option configures a resource.
type Option func(*options)

// WithName sets the name used in errors, logs and telemetry.
// Default: "resource"
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDefaultMetadata sets the metadata given to keys seen for the first time.
func WithDefaultMetadata(factory metadata.Factory) Option {
	return func(o *options) { o.factory = factory }
}

// WithLogger sets the logger. It is scoped to the resource name.
func WithLogger(logger observe.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver instruments loads with the observer's tracer, meter and
// logger. WithLogger still takes precedence for logging.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithMiddleware instruments loads with an existing middleware.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *options) { o.middleware = mw }
}

// WithPolicy runs every loader call through policy.
func WithPolicy(policy *resilience.Policy) Option {
	return func(o *options) { o.policy = policy }
}

// WithMaxAge treats values older than d as outdated. Zero disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithLoadThrough redirects loads of a flat key to the key fn returns,
// typically an alias fetching a batch that contains it. Callers still
// receive only the value they asked for. fn's key type must match the
// resource's.
func WithLoadThrough[K comparable](fn func(K) key.ResourceKey[K]) Option {
	return func(o *options) { o.loadThrough = fn }
}

func loadThroughFor[K comparable](o *options) func(K) key.ResourceKey[K] {
	if o.loadThrough == nil {
		return nil
	}
	fn, ok := o.loadThrough.(func(K) key.ResourceKey[K])
	if !ok {
		panic(fmt.Sprintf("resource %s: WithLoadThrough function %T does not match the resource key type", o.name, o.loadThrough))
	}
	return fn
}
