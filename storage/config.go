package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProviderLocal selects the local filesystem provider.
const ProviderLocal = "local"

// DefaultProvider is used when no provider is configured.
const DefaultProvider = ProviderLocal

// Config holds storage configuration.
type Config struct {
	// Provider selects the storage backend.
	Provider string `mapstructure:"provider" json:"provider"`

	// BasePath is the root directory for local storage.
	BasePath string `mapstructure:"base_path" json:"base_path"`
}

// DefaultBasePath is the per-user cache directory for archived snapshots,
// falling back to the temp directory.
func DefaultBasePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "dbsnap")
	}
	return filepath.Join(os.TempDir(), "dbsnap")
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath()
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return fmt.Errorf("storage: base_path is required for local provider")
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
