package postgres

import (
	"fmt"
	"net/url"

	"github.com/kbukum/dbsnap/workload"
	"github.com/kbukum/dbsnap/workload/docker"
)

// Defaults for the containerized server.
const (
	DefaultImage    = "postgres:17"
	DefaultDatabase = "test"
	DefaultUsername = "test-user"
	DefaultPassword = "test-password"

	containerPort = 5432
	dataDir       = "/var/lib/postgresql/data"
)

// Config configures the PostgreSQL backend.
type Config struct {
	// URL of an existing server. When set no container is started; a
	// uniquely named database is created on that server instead.
	URL string `mapstructure:"url" json:"url"`

	Image    string `mapstructure:"image" json:"image"`
	Database string `mapstructure:"database" json:"database"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`

	// DisableTmpfs keeps the data directory on the container filesystem
	// instead of memory.
	DisableTmpfs bool `mapstructure:"disable_tmpfs" json:"disable_tmpfs"`
	// MemoryLimit caps the container, e.g. "512m".
	MemoryLimit string `mapstructure:"memory_limit" json:"memory_limit"`
	// CPULimit caps the container in CPUs, e.g. "1.5" or "500m".
	CPULimit string `mapstructure:"cpu_limit" json:"cpu_limit"`

	Docker docker.Config `mapstructure:"docker" json:"docker"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	c.Docker.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("postgres: invalid url: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres: url scheme must be postgres or postgresql, got %q", u.Scheme)
		}
		return nil
	}
	if c.Image == "" || c.Database == "" || c.Username == "" {
		return fmt.Errorf("postgres: image, database and username are required")
	}
	res := workload.ResourceConfig{CPULimit: c.CPULimit, MemoryLimit: c.MemoryLimit}
	if _, err := res.Limits(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return c.Docker.Validate()
}

// External reports whether an existing server is used.
func (c *Config) External() bool { return c.URL != "" }
