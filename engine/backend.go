package engine

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/snapshot"
)

// RestoreMode describes how a backend returns to the baseline.
type RestoreMode int

const (
	// RestoreInPlace rewrites the running instance. Leases are serialized.
	RestoreInPlace RestoreMode = iota
	// RestoreFresh builds a new instance from the snapshot for every lease.
	RestoreFresh
)

func (m RestoreMode) String() string {
	if m == RestoreFresh {
		return "fresh"
	}
	return "in_place"
}

// Backend is a database engine the controller can provision, snapshot and
// restore.
type Backend interface {
	// Name identifies the backend in logs, metrics and archive keys.
	Name() string
	// Dialect renders declarative schemas for this engine.
	Dialect() schema.Dialect
	// MigrationDriver wraps a connection for versioned migrations.
	MigrationDriver() schema.DriverFunc
	// Mode reports the restore strategy.
	Mode() RestoreMode

	// Start provisions an empty, reachable instance.
	Start(ctx context.Context) (*Instance, error)
	// Capture snapshots the full state of inst without stopping it.
	Capture(ctx context.Context, inst *Instance, name string) (*snapshot.Snapshot, error)
	// Restore returns an instance whose state equals snap. In-place backends
	// return inst itself; fresh backends return a new instance.
	Restore(ctx context.Context, inst *Instance, snap *snapshot.Snapshot) (*Instance, error)
	// Stop destroys inst and everything the backend created for it.
	Stop(ctx context.Context, inst *Instance) error
}

// BlobBackend is implemented by backends whose snapshots carry the full
// state as bytes and can therefore be archived.
type BlobBackend interface {
	Backend
	ContentType() string
}

// Instance is a running engine created by a Backend.
type Instance struct {
	// ID is unique per instance.
	ID string
	// Backend is the name of the backend that created the instance.
	Backend string
	// Driver is the database/sql driver name for DSN.
	Driver string
	// DSN is the connection string for the instance's database.
	DSN string
	// Location is the container ID or data directory backing the instance.
	Location string
	// State is owned by the backend.
	State any

	stopped atomic.Bool
}

// NewInstance creates a running instance with a fresh ID.
func NewInstance(backend, driver, dsn, location string) *Instance {
	return &Instance{
		ID:       uuid.NewString(),
		Backend:  backend,
		Driver:   driver,
		DSN:      dsn,
		Location: location,
	}
}

// Running reports whether the instance has not been stopped.
func (i *Instance) Running() bool { return !i.stopped.Load() }

// MarkStopped records that the backend destroyed the instance. It reports
// false if the instance was already stopped.
func (i *Instance) MarkStopped() bool { return i.stopped.CompareAndSwap(false, true) }
