package docker

import (
	"errors"
	"fmt"
	"os"
)

// DefaultHost is the local Docker daemon socket.
const DefaultHost = "unix:///var/run/docker.sock"

// Config holds Docker-specific workload configuration.
type Config struct {
	Host        string     `mapstructure:"host" json:"host"`
	APIVersion  string     `mapstructure:"api_version" json:"api_version"`
	TLS         *TLSConfig `mapstructure:"tls" json:"tls"`
	Platform    string     `mapstructure:"platform" json:"platform"`
	BindAddress string     `mapstructure:"bind_address" json:"bind_address"`
}

// TLSConfig holds Docker TLS settings.
type TLSConfig struct {
	CACert string `mapstructure:"ca_cert" json:"ca_cert"`
	Cert   string `mapstructure:"cert" json:"cert"`
	Key    string `mapstructure:"key" json:"key"`
}

// ApplyDefaults fills in zero-valued fields. The host falls back to
// DOCKER_HOST, then to the local socket.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = os.Getenv("DOCKER_HOST")
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.BindAddress == "" {
		c.BindAddress = "127.0.0.1"
	}
}

// Validate checks the Docker configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("docker: host is required")
	}
	if c.TLS != nil {
		if c.TLS.Cert == "" || c.TLS.Key == "" {
			return fmt.Errorf("docker: tls cert and key are both required when tls is enabled")
		}
	}
	return nil
}
