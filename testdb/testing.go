package testdb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
)

// T opens a session for the test and releases it in t.Cleanup. Setup
// failures fail the test; snapshot errors carry the test name.
//
// On in-place backends T waits while another session holds the database.
// The wait ends at the acquire timeout or shortly before the test deadline,
// whichever comes first, and the failure names the holder.
func (m *Manager) T(t testing.TB) *Session {
	t.Helper()
	ctx, cancel := m.waitContext(t)
	defer cancel()

	sess, err := m.Setup(engine.WithOwner(ctx, t.Name()))
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && (errors.IsSnapshot(err) || errors.IsTimeout(err)) {
			appErr.WithDetail("test", t.Name())
		}
		if errors.IsTimeout(err) && appErr.Details["held_by"] != nil {
			t.Fatalf("testdb: %s gave up waiting for the database held by %v: %v", t.Name(), appErr.Details["held_by"], err)
		}
		t.Fatalf("testdb: setup %s: %v", t.Name(), err)
	}
	t.Cleanup(func() {
		if err := sess.Release(context.Background()); err != nil {
			t.Errorf("testdb: release %s: %v", t.Name(), err)
		}
	})
	return sess
}

// deadlineGrace leaves room to report a stuck acquire before the test
// binary's own timeout panics.
const deadlineGrace = 5 * time.Second

func (m *Manager) waitContext(t testing.TB) (context.Context, context.CancelFunc) {
	var deadline time.Time
	if m.acquireTimeout > 0 {
		deadline = time.Now().Add(m.acquireTimeout)
	}
	if dt, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		if d, ok := dt.Deadline(); ok {
			if early := d.Add(-deadlineGrace); early.After(time.Now()) {
				d = early
			}
			if deadline.IsZero() || d.Before(deadline) {
				deadline = d
			}
		}
	}
	if deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), deadline)
}

// Main initializes ctrl, runs the tests and tears ctrl down. It returns
// the exit code for os.Exit.
func Main(m *testing.M, ctrl *engine.Controller) int {
	ctx := context.Background()
	if err := ctrl.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "testdb: initialize: %v\n", err)
		return 1
	}

	code := m.Run()

	if err := ctrl.Teardown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "testdb: teardown: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}
