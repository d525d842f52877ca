package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
)

// Manager opens sessions on databases restored by a Controller.
type Manager struct {
	ctrl           *engine.Controller
	log            *logger.Logger
	acquireTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its sessions.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithAcquireTimeout bounds how long T waits for a database held by another
// session. Zero leaves only the test's own deadline.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Manager) { m.acquireTimeout = d }
}

// New creates a Manager on an externally initialized controller.
func New(ctrl *engine.Controller, opts ...Option) *Manager {
	m := &Manager{ctrl: ctrl}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.NewNop()
	}
	m.log = m.log.WithComponent("testdb")
	return m
}

// Controller returns the controller sessions are acquired from.
func (m *Manager) Controller() *engine.Controller { return m.ctrl }

// Setup restores the baseline and opens a pool plus one dedicated
// connection on it. Anything acquired before a failure is released.
func (m *Manager) Setup(ctx context.Context) (_ *Session, err error) {
	lease, err := m.ctrl.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	inst := lease.Instance()

	var db *sql.DB
	defer func() {
		if err == nil {
			return
		}
		if db != nil {
			_ = db.Close()
		}
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			m.log.Error("failed to release lease after setup error", logger.ErrorFields("release", rerr))
		}
	}()

	db, err = sql.Open(inst.Driver, inst.DSN)
	if err != nil {
		return nil, errors.Snapshot("open", m.baselineName(), err)
	}
	if err = db.PingContext(ctx); err != nil {
		return nil, errors.Snapshot("open", m.baselineName(), fmt.Errorf("ping restored database: %w", err))
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Snapshot("open", m.baselineName(), fmt.Errorf("check out connection: %w", err))
	}

	m.log.Debug("session opened", logger.Fields(
		logger.FieldBackend, inst.Backend,
		logger.FieldInstanceID, inst.ID,
	))
	return &Session{lease: lease, db: db, conn: conn, log: m.log}, nil
}

func (m *Manager) baselineName() string {
	if b := m.ctrl.Baseline(); b != nil {
		return b.Name()
	}
	return engine.DefaultSnapshotName
}
