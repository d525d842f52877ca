// Package snapshot holds the immutable baseline captured from a test
// database and an optional archive that keeps blob baselines between runs.
//
// A Snapshot either carries the full engine state as bytes (embedded
// engines) or is a named reference to state that lives inside the engine
// (for example a PostgreSQL template database). Snapshots never change after
// capture; Reader and WriteTo expose the bytes without copying.
package snapshot
