// Package sqlite is the embedded engine backend. Each instance is a SQLite
// database file in its own directory; snapshots are the file bytes and every
// restore materializes a new instance from them.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4/database"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/snapshot"
)

const (
	// BackendName identifies this backend.
	BackendName = "sqlite"
	// DriverName is the database/sql driver used for instances.
	DriverName = "sqlite3"
	// ContentType marks snapshots produced by this backend.
	ContentType = "application/vnd.sqlite3"

	dbFile = "db.sqlite"

	applicationID = 0x64627370
)

// header is the magic string every SQLite database file starts with.
var header = []byte("SQLite format 3\x00")

// Config configures the backend.
type Config struct {
	// Dir is where instance directories are created. Defaults to the
	// system temp directory.
	Dir string `mapstructure:"dir" json:"dir"`
	// BusyTimeoutMS is passed to the driver as _busy_timeout.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.BusyTimeoutMS <= 0 {
		c.BusyTimeoutMS = 5000
	}
}

// Backend implements engine.Backend with SQLite files.
type Backend struct {
	cfg Config
	log *logger.Logger
}

var _ engine.BlobBackend = (*Backend)(nil)

// New creates the backend.
func New(cfg Config, log *logger.Logger) *Backend {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Backend{cfg: cfg, log: log.WithComponent("engine.sqlite")}
}

func (b *Backend) Name() string             { return BackendName }
func (b *Backend) Dialect() schema.Dialect  { return schema.SQLite }
func (b *Backend) Mode() engine.RestoreMode { return engine.RestoreFresh }
func (b *Backend) ContentType() string      { return ContentType }

// MigrationDriver wraps a connection in the golang-migrate sqlite3 driver.
func (b *Backend) MigrationDriver() schema.DriverFunc {
	return func(db *sql.DB) (database.Driver, error) {
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
}

// Start creates an empty database file in a new directory.
func (b *Backend) Start(ctx context.Context) (*engine.Instance, error) {
	inst, err := b.newInstance()
	if err != nil {
		return nil, errors.Provisioning(BackendName, err)
	}
	if err := b.ping(ctx, inst); err != nil {
		_ = os.RemoveAll(inst.Location)
		return nil, errors.Provisioning(BackendName, err)
	}
	b.log.Debug("instance started", logger.Fields(logger.FieldInstanceID, inst.ID, "dir", inst.Location))
	return inst, nil
}

// Capture copies the live database into a temporary file with VACUUM INTO
// and returns its bytes.
func (b *Backend) Capture(ctx context.Context, inst *engine.Instance, name string) (*snapshot.Snapshot, error) {
	if !inst.Running() {
		return nil, errors.Snapshot("capture", name, fmt.Errorf("instance %s is stopped", inst.ID))
	}

	tmpDir, err := os.MkdirTemp(b.cfg.Dir, "dbsnap-capture-*")
	if err != nil {
		return nil, errors.Snapshot("capture", name, err)
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck
	target := filepath.Join(tmpDir, dbFile)

	db, err := sql.Open(DriverName, inst.DSN)
	if err != nil {
		return nil, errors.Snapshot("capture", name, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(target)); err != nil {
		return nil, errors.Snapshot("capture", name, fmt.Errorf("vacuum into: %w", err))
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, errors.Snapshot("capture", name, err)
	}
	return snapshot.New(name, ContentType, data), nil
}

// Restore writes the snapshot into a new instance directory and checks it
// with PRAGMA quick_check. inst is left untouched.
func (b *Backend) Restore(ctx context.Context, _ *engine.Instance, snap *snapshot.Snapshot) (*engine.Instance, error) {
	if err := validate(snap); err != nil {
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}

	inst, err := b.newInstance()
	if err != nil {
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}
	if err := b.materialize(ctx, inst, snap); err != nil {
		_ = os.RemoveAll(inst.Location)
		return nil, errors.Snapshot("restore", snap.Name(), err)
	}
	return inst, nil
}

func (b *Backend) materialize(ctx context.Context, inst *engine.Instance, snap *snapshot.Snapshot) error {
	f, err := os.OpenFile(filepath.Join(inst.Location, dbFile), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := snap.WriteTo(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	db, err := sql.Open(DriverName, inst.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// Stop deletes the instance directory.
func (b *Backend) Stop(_ context.Context, inst *engine.Instance) error {
	if !inst.MarkStopped() {
		return nil
	}
	if err := os.RemoveAll(inst.Location); err != nil {
		return fmt.Errorf("sqlite: remove %s: %w", inst.Location, err)
	}
	b.log.Debug("instance stopped", logger.Fields(logger.FieldInstanceID, inst.ID))
	return nil
}

func (b *Backend) newInstance() (*engine.Instance, error) {
	dir, err := os.MkdirTemp(b.cfg.Dir, "dbsnap-sqlite-*")
	if err != nil {
		return nil, err
	}
	return engine.NewInstance(BackendName, DriverName, b.dsn(filepath.Join(dir, dbFile)), dir), nil
}

func (b *Backend) dsn(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(b.cfg.BusyTimeoutMS))
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

func (b *Backend) ping(ctx context.Context, inst *engine.Instance) error {
	db, err := sql.Open(DriverName, inst.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	// A non-zero application_id forces the header page to be written.
	_, err = db.ExecContext(ctx, fmt.Sprintf("PRAGMA application_id = %d", applicationID))
	return err
}

func validate(snap *snapshot.Snapshot) error {
	if snap.IsRef() {
		return fmt.Errorf("snapshot %q is a reference, not a sqlite blob", snap.Name())
	}
	if snap.ContentType() != ContentType {
		return fmt.Errorf("unexpected content type %q", snap.ContentType())
	}
	head := make([]byte, len(header))
	if _, err := io.ReadFull(snap.Reader(), head); err != nil || !bytes.Equal(head, header) {
		return fmt.Errorf("snapshot %q is not a sqlite database", snap.Name())
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
