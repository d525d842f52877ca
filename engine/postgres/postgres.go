// Package postgres is the PostgreSQL engine backend.
//
// By default it starts a throwaway server in a Docker container. When a
// server URL is configured it creates a uniquely named database on that
// server instead. Baselines are template databases: Capture clones the test
// database into a template and Restore drops the test database and clones
// it back from the template, so the instance is restored in place.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/snapshot"
	"github.com/kbukum/dbsnap/workload"
)

const (
	// BackendName identifies this backend.
	BackendName = "postgres"
	// DriverName is the database/sql driver registered by pgx/v5/stdlib.
	DriverName = "pgx"
	// ContentType marks template-database snapshots.
	ContentType = "application/x-postgres-template"
)

// instanceState is the backend-owned part of an engine.Instance.
type instanceState struct {
	adminDSN    string
	database    string
	owner       string
	containerID string
	external    bool

	mu        sync.Mutex
	templates []string
}

func (s *instanceState) addTemplate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t == name {
			return
		}
	}
	s.templates = append(s.templates, name)
}

func (s *instanceState) hasTemplate(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t == name {
			return true
		}
	}
	return false
}

func (s *instanceState) templateList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.templates...)
}

// Option configures a Backend.
type Option func(*Backend)

// WithManager supplies the container runtime instead of creating a Docker
// manager from the configuration.
func WithManager(m workload.Manager) Option {
	return func(b *Backend) { b.manager = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// Backend implements engine.Backend for PostgreSQL.
type Backend struct {
	cfg     Config
	log     *logger.Logger
	manager workload.Manager
	ping    func(ctx context.Context, dsn string) error

	managerOnce sync.Once
	managerErr  error
}

var _ engine.Backend = (*Backend)(nil)

// New creates the backend. The configuration is validated on Start.
func New(cfg Config, opts ...Option) *Backend {
	cfg.ApplyDefaults()
	b := &Backend{cfg: cfg, ping: ping}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.NewNop()
	}
	b.log = b.log.WithComponent("engine.postgres")
	return b
}

func (b *Backend) Name() string             { return BackendName }
func (b *Backend) Dialect() schema.Dialect  { return schema.Postgres }
func (b *Backend) Mode() engine.RestoreMode { return engine.RestoreInPlace }

// MigrationDriver wraps a connection in the golang-migrate pgx/v5 driver.
func (b *Backend) MigrationDriver() schema.DriverFunc {
	return func(db *sql.DB) (database.Driver, error) {
		return pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	}
}

// Start provisions a server (or a database on the configured server) and
// waits until it accepts connections.
func (b *Backend) Start(ctx context.Context) (*engine.Instance, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, errors.Provisioning(BackendName, err)
	}
	if b.cfg.External() {
		return b.startExternal(ctx)
	}
	return b.startContainer(ctx)
}

// Capture clones the test database into a template named after the
// snapshot. Sessions on the test database are terminated first.
func (b *Backend) Capture(ctx context.Context, inst *engine.Instance, name string) (*snapshot.Snapshot, error) {
	st, err := stateOf(inst)
	if err != nil {
		return nil, errors.Snapshot("capture", name, err)
	}
	tpl := templateName(st, name)

	a, err := connectAdmin(ctx, st.adminDSN)
	if err != nil {
		return nil, errors.Snapshot("capture", tpl, err)
	}
	defer a.close(ctx)

	if err := a.dropDatabase(ctx, tpl); err != nil {
		return nil, errors.Snapshot("capture", tpl, fmt.Errorf("drop stale template: %w", err))
	}
	if err := a.cloneDatabase(ctx, st.database, tpl, st.owner); err != nil {
		return nil, errors.Snapshot("capture", tpl, err)
	}
	st.addTemplate(tpl)

	b.log.Debug("template captured", logger.Fields(
		logger.FieldInstanceID, inst.ID,
		logger.FieldSnapshot, tpl,
	))
	return snapshot.Ref(tpl, ContentType), nil
}

// Restore drops the test database and recreates it from the snapshot's
// template. The same instance is returned.
func (b *Backend) Restore(ctx context.Context, inst *engine.Instance, snap *snapshot.Snapshot) (*engine.Instance, error) {
	if !snap.IsRef() || snap.ContentType() != ContentType {
		return nil, errors.Snapshot("restore", snap.Name(),
			fmt.Errorf("expected %s reference, got %s", ContentType, snap.ContentType()))
	}
	st, err := stateOf(inst)
	if err != nil {
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}
	if !st.hasTemplate(snap.Name()) {
		return nil, errors.Snapshot("restore", snap.Name(), fmt.Errorf("template %q was not captured on instance %s", snap.Name(), inst.ID))
	}

	a, err := connectAdmin(ctx, st.adminDSN)
	if err != nil {
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}
	defer a.close(ctx)

	if err := a.dropDatabase(ctx, st.database); err != nil {
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}
	if err := a.cloneDatabase(ctx, snap.Name(), st.database, st.owner); err != nil {
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}
	return inst, nil
}

// Stop removes the container and any other container labelled with the
// instance, or drops the database and its templates from the external server.
func (b *Backend) Stop(ctx context.Context, inst *engine.Instance) error {
	st, err := stateOf(inst)
	if err != nil {
		return err
	}
	if !inst.MarkStopped() {
		return nil
	}
	if st.external {
		return b.dropExternal(ctx, inst, st)
	}

	mgr, err := b.workloads()
	if err != nil {
		return err
	}
	if err := mgr.Remove(ctx, st.containerID); err != nil {
		return fmt.Errorf("postgres: remove container: %w", err)
	}
	if err := b.removeInstance(ctx, mgr, inst.ID); err != nil {
		return fmt.Errorf("postgres: remove instance containers: %w", err)
	}
	b.log.Info("container removed", logger.Fields(
		logger.FieldInstanceID, inst.ID,
		logger.FieldContainerID, shortID(st.containerID),
	))
	return nil
}

func stateOf(inst *engine.Instance) (*instanceState, error) {
	if inst == nil {
		return nil, fmt.Errorf("postgres: nil instance")
	}
	st, ok := inst.State.(*instanceState)
	if !ok {
		return nil, fmt.Errorf("postgres: instance %s was not created by this backend", inst.ID)
	}
	return st, nil
}

// templateName scopes template names to the instance database on shared
// servers so concurrent runs do not collide.
func templateName(st *instanceState, name string) string {
	if st.external {
		return st.database + "_" + name
	}
	return name
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
