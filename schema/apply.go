package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database"

	"github.com/kbukum/dbsnap/errors"
)

// DriverFunc creates a golang-migrate database driver over db. Engine
// backends provide one for their database.
type DriverFunc func(db *sql.DB) (database.Driver, error)

// Target describes the database a Source is applied to.
type Target struct {
	Dialect Dialect
	Driver  DriverFunc
}

// Source produces a baseline schema on an empty database.
type Source interface {
	// Apply brings db to the schema. db is dedicated to the call and may be
	// closed by it.
	Apply(ctx context.Context, db *sql.DB, target Target) error
	// Fingerprint identifies the resulting schema for the given dialect.
	Fingerprint(d Dialect) (string, error)
}

// Definition is a Source backed by a declarative Schema.
type Definition struct {
	Schema Schema
}

// Statements renders the DDL that creates the definition from nothing.
func (def Definition) Statements(d Dialect) ([]string, error) {
	return Plan(Schema{}, def.Schema, d)
}

// Apply plans against an empty schema and executes the result.
func (def Definition) Apply(ctx context.Context, db *sql.DB, target Target) error {
	stmts, err := def.Statements(target.Dialect)
	if err != nil {
		return err
	}
	return Apply(ctx, db, target.Dialect, stmts)
}

// Fingerprint hashes the rendered statements.
func (def Definition) Fingerprint(d Dialect) (string, error) {
	stmts, err := def.Statements(d)
	if err != nil {
		return "", err
	}
	return Fingerprint(stmts), nil
}

// Apply executes stmts in order and stops at the first failure. When the
// dialect supports transactional DDL the statements share one transaction,
// so a failure leaves nothing behind.
func Apply(ctx context.Context, db *sql.DB, d Dialect, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}

	if !d.SupportsTransactionalDDL() {
		for i, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return statementError(i, len(stmts), stmt, err)
			}
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Schema("cannot begin transaction", err)
	}
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return statementError(i, len(stmts), stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Schema("commit failed", err)
	}
	return nil
}

func statementError(i, n int, stmt string, err error) error {
	return errors.Schema(fmt.Sprintf("statement %d of %d failed", i+1, n), err).
		WithDetail("statement", stmt)
}
