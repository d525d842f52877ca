package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	apperrors "github.com/kbukum/dbsnap/errors"
)

// Migrations is a Source backed by versioned migration files
// (VERSION_name.up.sql) read from FS under Dir.
type Migrations struct {
	FS  fs.FS
	Dir string
}

// Apply runs every up migration through golang-migrate using the target's
// driver. The migrator is closed afterwards, which also closes db.
func (m Migrations) Apply(ctx context.Context, db *sql.DB, target Target) error {
	if target.Driver == nil {
		return apperrors.Schema("no migration driver for dialect "+target.Dialect.Name(), nil)
	}

	driver, err := target.Driver(db)
	if err != nil {
		return apperrors.Schema("create migration driver", err)
	}
	source, err := iofs.New(m.FS, m.Dir)
	if err != nil {
		return apperrors.Schema("open migration source", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, target.Dialect.Name(), driver)
	if err != nil {
		return apperrors.Schema("create migrator", err)
	}
	defer migrator.Close()

	done := make(chan error, 1)
	go func() { done <- migrator.Up() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return apperrors.Schema("migrate up", err)
		}
		return nil
	case <-ctx.Done():
		migrator.GracefulStop <- true
		<-done
		return apperrors.Schema("migrate up interrupted", ctx.Err())
	}
}

// Fingerprint hashes the names and contents of the up migrations in
// version order. Migrations are engine-specific SQL, so d is not used.
func (m Migrations) Fingerprint(Dialect) (string, error) {
	entries, err := fs.ReadDir(m.FS, m.Dir)
	if err != nil {
		return "", apperrors.Schema("read migrations", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		data, err := fs.ReadFile(m.FS, path.Join(m.Dir, name))
		if err != nil {
			return "", apperrors.Schema("read migration "+name, err)
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
