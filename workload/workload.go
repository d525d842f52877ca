package workload

import (
	"context"
	"time"
)

// Manager manages workload lifecycle operations.
type Manager interface {
	// Deploy creates and starts a workload.
	Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error)

	// Remove removes a workload and its anonymous volumes, stopping it first
	// if needed.
	Remove(ctx context.Context, id string) error

	// Status reports whether a workload is still running and, if not, how
	// it ended. A missing workload has status StatusNotFound.
	Status(ctx context.Context, id string) (*WorkloadStatus, error)

	// Logs returns log output from a workload.
	Logs(ctx context.Context, id string, opts LogOptions) ([]string, error)

	// List returns workloads matching the given filter, including exited ones.
	List(ctx context.Context, filter ListFilter) ([]WorkloadInfo, error)

	// HealthCheck verifies the runtime is available.
	HealthCheck(ctx context.Context) error
}

// ExecProvider is optionally implemented by runtimes that can execute
// commands inside running workloads.
type ExecProvider interface {
	Exec(ctx context.Context, id string, cmd []string) (*ExecResult, error)
}

// PortResolver is optionally implemented by runtimes that publish container
// ports on the host.
type PortResolver interface {
	// HostEndpoint returns the host address and port bound to the given
	// container port.
	HostEndpoint(ctx context.Context, id string, port PortMapping) (host string, hostPort int, err error)
}

// Status constants for workload state.
const (
	StatusCreated    = "created"
	StatusRunning    = "running"
	StatusStopped    = "stopped"
	StatusError      = "error"
	StatusRestarting = "restarting"
	StatusNotFound   = "not_found"
)

// ProviderDocker names the Docker runtime.
const ProviderDocker = "docker"

// LabelManagedBy is set on every workload this module creates.
const LabelManagedBy = "managed-by"

// ManagedByValue is the LabelManagedBy value.
const ManagedByValue = "dbsnap"

// DeployRequest describes a workload to deploy.
type DeployRequest struct {
	Name        string            // Container name; empty lets the runtime choose
	Image       string            // Container image reference
	Command     []string          // Override command
	Environment map[string]string // Environment variables
	Labels      map[string]string // Key-value pairs for filtering and grouping
	Resources   *ResourceConfig   // CPU/memory constraints
	Ports       []PortMapping     // Published ports
	Tmpfs       map[string]string // Mount path -> options
	AutoRemove  bool              // Remove after exit
	Platform    string            // Target platform (e.g. "linux/amd64")
}

// DeployResult is returned after a successful deployment.
type DeployResult struct {
	ID     string
	Name   string
	Status string
}

// WorkloadStatus represents the current state of a workload.
type WorkloadStatus struct {
	ID        string
	Name      string
	Status    string
	Running   bool
	ExitCode  int
	OOMKilled bool
	Message   string // Runtime error or state description
	StartedAt time.Time
	StoppedAt time.Time
}

// WorkloadInfo contains summary information for list operations.
type WorkloadInfo struct {
	ID      string
	Name    string
	Image   string
	Status  string
	Labels  map[string]string
	Created time.Time
}

// LogOptions controls log retrieval behavior.
type LogOptions struct {
	Tail  int           // Last N lines (0 = all)
	Since time.Duration // Logs from this duration ago
}

// ListFilter filters workloads in List operations.
type ListFilter struct {
	Labels map[string]string // Match ALL labels (AND)
	Name   string
}

// ExecResult is returned from ExecProvider.Exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// PortMapping maps a workload port to a host port. Host 0 asks the runtime
// for an ephemeral port.
type PortMapping struct {
	Host      int
	Container int
	Protocol  string // "tcp" (default), "udp"
}

// Proto returns the protocol, defaulting to tcp.
func (p PortMapping) Proto() string {
	if p.Protocol == "" {
		return "tcp"
	}
	return p.Protocol
}
