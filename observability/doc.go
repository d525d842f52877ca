// Package observability wires OpenTelemetry tracing and metrics into the
// database lifecycle.
//
// Library code only talks to the global providers through Tracer, Meter and
// StartSpan, so nothing is exported unless a binary calls Init:
//
//	shutdown, err := observability.Init(ctx, cfg.Observability, log)
//	defer shutdown(ctx)
//
// LifecycleMetrics records initialize, restore and session counts per
// backend.
package observability
