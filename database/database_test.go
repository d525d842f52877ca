package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/dbsnap/component"
	apperrors "github.com/kbukum/dbsnap/errors"
)

type widget struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

func sqliteConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Driver:   DriverSQLite,
		DSN:      "file:" + filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}
}

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.GormDB.AutoMigrate(&widget{}))
	return db
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{DSN: "postgres://localhost/db"}
	cfg.ApplyDefaults()

	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, "1h", cfg.ConnMaxLifetime)
	assert.Equal(t, "5m", cfg.ConnMaxIdleTime)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "200ms", cfg.SlowQueryThreshold)
	assert.Equal(t, "warn", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Driver = "mysql" }},
		{"missing dsn", func(c *Config) { c.DSN = "" }},
		{"idle above open", func(c *Config) { c.MaxIdleConns = 100 }},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DSN: "postgres://localhost/db"}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)
	var got widget
	require.NoError(t, db.WithContext(ctx).First(&got, "name = ?", "a").Error)
	assert.Equal(t, int64(1), got.ID)

	h := db.CheckHealth(ctx)
	assert.True(t, h.Connected)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	assert.Error(t, db.PingContext(ctx))
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, sqliteConfig(t), nil)
	assert.Error(t, err)
}

func TestWrap_LeavesPoolOpen(t *testing.T) {
	pool, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "wrap.db"))
	require.NoError(t, err)
	defer pool.Close()

	db, err := Wrap(pool, DriverSQLite, nil)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, db.Driver())
	require.NoError(t, db.GormDB.AutoMigrate(&widget{}))
	require.NoError(t, db.GormDB.Create(&widget{Name: "kept"}).Error)

	require.NoError(t, db.Close())
	require.NoError(t, pool.Ping())

	var n int
	require.NoError(t, pool.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&n))
	assert.Equal(t, 1, n)

	_, err = Wrap(pool, "oracle", nil)
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	boom := stderrors.New("boom")
	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&widget{Name: "rolled-back"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "committed"}).Error
	}))

	var names []string
	require.NoError(t, db.GormDB.Model(&widget{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"committed"}, names)
}

func TestFromDatabase(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	assert.Nil(t, FromDatabase(nil, "widget"))

	err := db.WithContext(ctx).First(&widget{}, 42).Error
	appErr := FromDatabase(err, "widget")
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)

	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "dup"}).Error)
	err = db.WithContext(ctx).Create(&widget{Name: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateError(err))
	appErr = FromDatabase(err, "widget")
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	appErr = FromDatabase(stderrors.New("dial tcp: connection refused"), "widget")
	assert.Equal(t, apperrors.ErrCodeConnectionFailed, appErr.Code)
	assert.True(t, appErr.Retryable)

	appErr = FromDatabase(stderrors.New("syntax error"), "widget")
	assert.Equal(t, apperrors.ErrCodeDatabaseError, appErr.Code)

	original := apperrors.NotFound("widget", "7")
	assert.Same(t, original, FromDatabase(original, "widget"))
}

func TestComponent(t *testing.T) {
	ctx := context.Background()
	c := NewComponent(sqliteConfig(t), nil)
	assert.Equal(t, "database", c.Name())
	assert.Equal(t, component.StatusUnhealthy, c.Health(ctx).Status)
	require.NoError(t, c.Stop(ctx))

	require.NoError(t, c.Start(ctx))
	require.NotNil(t, c.DB())
	assert.Equal(t, component.StatusHealthy, c.Health(ctx).Status)

	require.NoError(t, c.Stop(ctx))
	assert.Equal(t, component.StatusUnhealthy, c.Health(ctx).Status)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("SILENT"))
	assert.Equal(t, gormlogger.Info, parseLogLevel(" info "))
	assert.Equal(t, gormlogger.Warn, parseLogLevel("verbose"))
}
