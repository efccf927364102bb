// Package event provides ordered, chainable event executors.
//
// An Executor broadcasts a value to its handlers in subscription order.
// Handlers may subscribe to every event or only to events whose data matches
// a subscription value under the executor's filter. Executors can be linked
// so that one event flows into others before or after the local handlers,
// which is how resources propagate "data outdated" across caches.
//
//	outdated := event.New[string]()
//	outdated.AddHandler(func(ctx context.Context, k string) error {
//	    log.Printf("outdated: %s", k)
//	    return nil
//	})
//	_ = outdated.Execute(ctx, "users")
package event
