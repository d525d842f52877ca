package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/resilience"
)

// externalDatabaseName returns a fresh database name for a shared server.
func externalDatabaseName() string {
	return "dbsnap_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// startExternal creates a new database on the configured server.
func (b *Backend) startExternal(ctx context.Context) (*engine.Instance, error) {
	connCfg, err := pgx.ParseConfig(b.cfg.URL)
	if err != nil {
		return nil, errors.Provisioning(BackendName, fmt.Errorf("parse url: %w", err))
	}

	if err := resilience.Poll(ctx, func(ctx context.Context) error { return b.ping(ctx, b.cfg.URL) }); err != nil {
		return nil, errors.Provisioning(BackendName, fmt.Errorf("server unreachable: %w", err))
	}

	db := externalDatabaseName()
	dsn, err := withDatabase(b.cfg.URL, db)
	if err != nil {
		return nil, errors.Provisioning(BackendName, err)
	}

	a, err := connectAdmin(ctx, b.cfg.URL)
	if err != nil {
		return nil, errors.Provisioning(BackendName, err)
	}
	defer a.close(ctx)

	if err := a.createDatabase(ctx, db, connCfg.User); err != nil {
		return nil, errors.Provisioning(BackendName, fmt.Errorf("create database %s: %w", db, err))
	}

	inst := engine.NewInstance(BackendName, DriverName, dsn, db)
	inst.State = &instanceState{
		adminDSN: b.cfg.URL,
		database: db,
		owner:    connCfg.User,
		external: true,
	}
	b.log.Info("database created on external server", logger.Fields(
		logger.FieldInstanceID, inst.ID,
		"database", db,
		"host", connCfg.Host,
	))
	return inst, nil
}

// dropExternal drops the instance database and every template captured
// from it.
func (b *Backend) dropExternal(ctx context.Context, inst *engine.Instance, st *instanceState) error {
	a, err := connectAdmin(ctx, st.adminDSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer a.close(ctx)

	var errs []error
	for _, db := range append(st.templateList(), st.database) {
		if err := a.dropDatabase(ctx, db); err != nil {
			errs = append(errs, fmt.Errorf("postgres: drop %s: %w", db, err))
		}
	}
	if len(errs) == 0 {
		b.log.Info("external database dropped", logger.Fields(logger.FieldInstanceID, inst.ID, "database", st.database))
	}
	return errors.Join(errs...)
}
