// Package engine runs the lifecycle of a disposable test database.
//
// A Controller owns one Backend. Initialize starts an engine instance, brings
// it to the baseline schema and captures a baseline snapshot. Each Acquire
// restores that baseline and hands out a Lease; Teardown releases every
// lease, stops the instance and returns the controller to its initial state
// so it can be initialized again.
//
// Backends restore in one of two ways. RestoreInPlace backends rewrite the
// running instance, so the controller hands out at most one lease at a time
// and the next Acquire waits for the previous lease to be released.
// RestoreFresh backends build a new instance per lease, so leases are
// independent and may be held concurrently.
//
//	ctrl := engine.New(sqlite.New(sqlite.Config{}, log), engine.Options{
//	    Source: schema.Definition{Schema: def},
//	})
//	if err := ctrl.Initialize(ctx); err != nil { ... }
//	defer ctrl.Teardown(ctx)
//
//	lease, err := ctrl.Acquire(ctx)
//	...
//	defer lease.Release(ctx)
package engine
