package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	DatabaseURL   string `mapstructure:"database_url"`
	Port          int    `mapstructure:"port"`
	Postgres      struct {
		Image        string `mapstructure:"image"`
		SnapshotName string `mapstructure:"snapshot_name"`
	} `mapstructure:"postgres"`
}

func (c *testConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Port == 0 {
		c.Port = 3000
	}
}

func TestServiceConfig_ApplyDefaults(t *testing.T) {
	cfg := ServiceConfig{Name: "svc"}
	cfg.ApplyDefaults()

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestServiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"missing name", ServiceConfig{Environment: "test"}, "config.name is required"},
		{"bad environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			assert.ErrorContains(t, tc.cfg.Validate(), tc.wantErr)
		})
	}
}

func TestLoad_YAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: itemsd
environment: test
port: 4000
postgres:
  image: postgres:16
`), 0o644))

	t.Setenv("POSTGRES_IMAGE", "postgres:17")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("POSTGRES_SNAPSHOT_NAME", "baseline")

	var cfg testConfig
	require.NoError(t, Load("itemsd", &cfg, WithConfigFile(path), WithFileSystem(&RealFileSystem{})))

	assert.Equal(t, "itemsd", cfg.Name)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "postgres:17", cfg.Postgres.Image)
	assert.Equal(t, "baseline", cfg.Postgres.SnapshotName)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.DatabaseURL)
}

func TestLoad_DefaultsWhenNothingConfigured(t *testing.T) {
	var cfg testConfig
	err := Load("itemsd", &cfg,
		WithFileSystem(&mockFS{}),
		WithDefaults(map[string]any{"name": "itemsd"}),
	)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_ValidationFailure(t *testing.T) {
	var cfg testConfig
	err := Load("itemsd", &cfg, WithFileSystem(&mockFS{}))
	assert.ErrorContains(t, err, "config.name is required")
}

func TestLoadConfig_MissingExplicitFileIsSkipped(t *testing.T) {
	var cfg testConfig
	assert.NoError(t, LoadConfig("svc", &cfg, WithConfigFile("/nonexistent/path.yml")))
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o644))

	var cfg testConfig
	assert.Error(t, LoadConfig("svc", &cfg, WithConfigFile(path)))
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("DBSNAP_TEST_PORT_VALUE=1\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("DBSNAP_TEST_PORT_VALUE") })

	var cfg testConfig
	require.NoError(t, LoadConfig("svc", &cfg, WithEnvFile(envPath)))
	assert.Equal(t, "1", os.Getenv("DBSNAP_TEST_PORT_VALUE"))
}

func TestResolver_SearchesServiceDir(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/itemsd/config.yml": true,
		"./.env":                  true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("itemsd", LoaderConfig{})

	assert.Equal(t, "./cmd/itemsd/config.yml", files.ConfigFile)
	assert.Equal(t, "./.env", files.EnvFile)
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	assert.Equal(t, []string{"port"}, generateEnvKeyVariants("PORT"))
	assert.ElementsMatch(t, []string{"database_url", "database.url"}, generateEnvKeyVariants("DATABASE_URL"))
	assert.Contains(t, generateEnvKeyVariants("POSTGRES_SNAPSHOT_NAME"), "postgres.snapshot_name")
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }

// LoadEnv delegates to the real loader so explicit env files still apply.
func (m *mockFS) LoadEnv(path string) error { return (&RealFileSystem{}).LoadEnv(path) }
