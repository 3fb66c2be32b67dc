// Package health tracks component health for the gateway health
// endpoint and the metrics server.
//
// The package models three states: healthy (operating normally),
// degraded (reduced functionality, expected to recover) and unhealthy
// (not functioning). Status carries the state with a message,
// timestamp, optional metrics and nested sub-statuses; Aggregate folds
// sub-statuses into a system status where any unhealthy component
// wins, then any degraded one.
//
// Monitor is the thread-safe registry the service wires its
// dependencies into. Components either push state changes:
//
//	monitor.UpdateDegraded("pricing", "catalog lookups throttled")
//
// or register a probe that the monitor runs when the health endpoint
// is hit:
//
//	monitor.Register("generation-store", func(ctx context.Context) health.Status {
//	    _, err := store.List(ctx)
//	    return health.FromError("generation-store", err)
//	})
//	status := monitor.RunChecks(ctx, "foundry")
//
// FromError maps a probe error through the error classification:
// transient failures report degraded, everything else unhealthy.
//
// Messages that leave the process pass through SanitizeMessage, which
// strips URLs, ARNs, file paths, addresses and credential-shaped
// fragments. The gateway uses the same scrubber for HTTP error bodies.
package health
