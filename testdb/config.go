package testdb

import (
	"fmt"
	"time"

	"github.com/kbukum/dbsnap/config"
	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/engine/postgres"
	"github.com/kbukum/dbsnap/engine/sqlite"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/snapshot"
	"github.com/kbukum/dbsnap/storage"
	"github.com/kbukum/dbsnap/validation"

	_ "github.com/kbukum/dbsnap/storage/local"
)

// ServiceName is the name configuration files are resolved under.
const ServiceName = "dbsnap"

// Engines.
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// PostgresConfig adds the baseline snapshot name to the backend settings.
type PostgresConfig struct {
	postgres.Config `mapstructure:",squash"`
	SnapshotName    string `mapstructure:"snapshot_name"`
}

// ArchiveConfig controls keeping SQLite baselines between runs.
type ArchiveConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	storage.Config `mapstructure:",squash"`
}

// Config selects and configures the engine. Every field is optional; in the
// environment the keys are ENGINE, DATABASE_URL, POSTGRES_IMAGE,
// POSTGRES_DATABASE, POSTGRES_USERNAME, POSTGRES_PASSWORD,
// POSTGRES_SNAPSHOT_NAME, STARTUP_TIMEOUT, TEARDOWN_TIMEOUT,
// ARCHIVE_ENABLED and ARCHIVE_BASE_PATH.
type Config struct {
	Engine string `mapstructure:"engine" validate:"oneof=postgres sqlite"`
	// DatabaseURL points the postgres engine at an existing server.
	DatabaseURL     string         `mapstructure:"database_url"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
	SQLite          sqlite.Config  `mapstructure:"sqlite"`
	StartupTimeout  time.Duration  `mapstructure:"startup_timeout" validate:"gt=0"`
	TeardownTimeout time.Duration  `mapstructure:"teardown_timeout" validate:"gt=0"`
	Archive         ArchiveConfig  `mapstructure:"archive"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Engine == "" {
		c.Engine = EnginePostgres
	}
	if c.Postgres.URL == "" {
		c.Postgres.URL = c.DatabaseURL
	}
	c.Postgres.ApplyDefaults()
	if c.Postgres.SnapshotName == "" {
		c.Postgres.SnapshotName = engine.DefaultSnapshotName
	}
	c.SQLite.ApplyDefaults()
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = engine.DefaultStartupTimeout
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = engine.DefaultTeardownTimeout
	}
	if c.Archive.Enabled {
		c.Archive.Config.ApplyDefaults()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Engine == EnginePostgres {
		if err := c.Postgres.Validate(); err != nil {
			return err
		}
	}
	if c.Archive.Enabled {
		return c.Archive.Config.Validate()
	}
	return nil
}

// LoadConfig reads Config from the environment, .env and config files.
func LoadConfig(opts ...config.LoaderOption) (Config, error) {
	var cfg Config
	if err := config.Load(ServiceName, &cfg, opts...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Open builds an uninitialized controller for the configured engine. A nil
// source leaves the baseline empty.
func Open(cfg Config, source schema.Source, log *logger.Logger) (*engine.Controller, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	opts := engine.Options{
		Source:          source,
		SnapshotName:    cfg.Postgres.SnapshotName,
		StartupTimeout:  cfg.StartupTimeout,
		TeardownTimeout: cfg.TeardownTimeout,
		Logger:          log,
	}

	var backend engine.Backend
	switch cfg.Engine {
	case EngineSQLite:
		backend = sqlite.New(cfg.SQLite, log)
	default:
		backend = postgres.New(cfg.Postgres.Config, postgres.WithLogger(log))
	}

	if cfg.Archive.Enabled {
		store, err := storage.New(cfg.Archive.Config, log)
		if err != nil {
			return nil, fmt.Errorf("testdb: archive storage: %w", err)
		}
		opts.Archive = snapshot.NewArchive(store, log)
	}

	return engine.New(backend, opts), nil
}
