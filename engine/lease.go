package engine

import (
	"context"
	"sync"
	"time"
)

// Lease is exclusive use of a restored instance. Release it exactly once
// when done; further calls return the first result.
type Lease struct {
	ctrl     *Controller
	inst     *Instance
	owner    string
	acquired time.Time

	once sync.Once
	err  error
}

// Instance returns the restored instance.
func (l *Lease) Instance() *Instance { return l.inst }

// Owner names the holder, as set with WithOwner on the Acquire context.
func (l *Lease) Owner() string { return l.owner }

// AcquiredAt is when the restore completed.
func (l *Lease) AcquiredAt() time.Time { return l.acquired }

// Release hands the instance back. For fresh backends the instance is
// destroyed; for in-place backends the next Acquire may proceed.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.err = l.ctrl.release(ctx, l)
	})
	return l.err
}

type ownerKey struct{}

// WithOwner labels leases acquired with ctx. The label is reported to
// callers left waiting for the lease.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
