// Package docker implements workload.Manager on the Docker Engine API.
package docker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/workload"
)

func init() {
	workload.RegisterFactory(workload.ProviderDocker, func(cfg workload.Config, providerCfg any, log *logger.Logger) (workload.Manager, error) {
		c := &Config{}
		if providerCfg != nil {
			pc, ok := providerCfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("docker: expected *docker.Config, got %T", providerCfg)
			}
			c = pc
		}
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewManager(c, cfg, log)
	})
}

// Manager implements workload.Manager using the Docker Engine SDK.
type Manager struct {
	client *client.Client
	cfg    *Config
	core   workload.Config
	log    *logger.Logger
}

// NewManager creates a Docker workload manager. core supplies the labels
// stamped on every container.
func NewManager(cfg *Config, core workload.Config, log *logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts := []client.Opt{
		client.WithHost(cfg.Host),
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}
	if cfg.TLS != nil && cfg.TLS.Cert != "" {
		opts = append(opts, client.WithTLSClientConfig(cfg.TLS.CACert, cfg.TLS.Cert, cfg.TLS.Key))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}

	return &Manager{
		client: cli,
		cfg:    cfg,
		core:   core,
		log:    log,
	}, nil
}

// Close releases the underlying API client.
func (m *Manager) Close() error {
	return m.client.Close()
}

// Deploy pulls the image if needed, then creates and starts a container.
func (m *Manager) Deploy(ctx context.Context, req workload.DeployRequest) (*workload.DeployResult, error) {
	m.log.Info("deploying workload", map[string]interface{}{
		"name":  req.Name,
		"image": req.Image,
	})

	if err := m.ensureImage(ctx, req.Image, req.Platform); err != nil {
		return nil, fmt.Errorf("docker: pull image: %w", err)
	}

	containerCfg, hostCfg, platform, err := m.buildContainerConfig(req)
	if err != nil {
		return nil, fmt.Errorf("docker: %w", err)
	}

	resp, err := m.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, platform, req.Name)
	if err != nil {
		return nil, fmt.Errorf("docker: create container: %w", err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.client.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
		return nil, fmt.Errorf("docker: start container: %w", err)
	}

	m.log.Info("workload deployed", map[string]interface{}{
		logger.FieldContainerID: shortID(resp.ID),
		"name":                  req.Name,
	})

	return &workload.DeployResult{
		ID:     resp.ID,
		Name:   req.Name,
		Status: workload.StatusRunning,
	}, nil
}

// Remove force-removes a Docker container and its anonymous volumes. A
// container that is already gone is not an error.
func (m *Manager) Remove(ctx context.Context, id string) error {
	err := m.client.ContainerRemove(ctx, id, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("docker: remove container: %w", err)
	}
	return nil
}

// Status inspects a container. A container that no longer exists is reported
// with StatusNotFound rather than an error.
func (m *Manager) Status(ctx context.Context, id string) (*workload.WorkloadStatus, error) {
	info, err := m.client.ContainerInspect(ctx, id)
	if client.IsErrNotFound(err) {
		return &workload.WorkloadStatus{ID: id, Status: workload.StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("docker: inspect container: %w", err)
	}
	ws := &workload.WorkloadStatus{ID: info.ID, Name: strings.TrimPrefix(info.Name, "/")}
	st := info.State
	if st == nil {
		ws.Status = workload.StatusError
		ws.Message = "daemon reported no state"
		return ws, nil
	}

	ws.Status = stateName(string(st.Status), st.ExitCode)
	ws.Running = st.Running && !st.Restarting
	ws.ExitCode = st.ExitCode
	ws.OOMKilled = st.OOMKilled
	ws.Message = st.Error
	if ws.Message == "" {
		ws.Message = string(st.Status)
	}
	ws.StartedAt = parseDockerTime(st.StartedAt)
	ws.StoppedAt = parseDockerTime(st.FinishedAt)
	return ws, nil
}

// stateName maps a Docker state string onto the workload status constants.
func stateName(state string, exitCode int) string {
	switch state {
	case "running", "paused":
		return workload.StatusRunning
	case "created":
		return workload.StatusCreated
	case "restarting":
		return workload.StatusRestarting
	case "dead":
		return workload.StatusError
	}
	if exitCode != 0 {
		return workload.StatusError
	}
	return workload.StatusStopped
}

// parseDockerTime returns the zero time for Docker's "0001-01-01T00:00:00Z"
// placeholder and for unparsable values.
func parseDockerTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil || t.Year() <= 1 {
		return time.Time{}
	}
	return t
}

// HostEndpoint reads the host binding of a published port from the
// container's network settings.
func (m *Manager) HostEndpoint(ctx context.Context, id string, port workload.PortMapping) (string, int, error) {
	info, err := m.client.ContainerInspect(ctx, id)
	if err != nil {
		return "", 0, fmt.Errorf("docker: inspect container: %w", err)
	}
	if info.NetworkSettings == nil {
		return "", 0, fmt.Errorf("docker: container %s has no network settings", shortID(id))
	}

	key := nat.Port(fmt.Sprintf("%d/%s", port.Container, port.Proto()))
	for _, b := range info.NetworkSettings.Ports[key] {
		if b.HostPort == "" {
			continue
		}
		hostPort, err := nat.ParsePort(b.HostPort)
		if err != nil {
			return "", 0, fmt.Errorf("docker: parse host port %q: %w", b.HostPort, err)
		}
		return m.endpointHost(b.HostIP), hostPort, nil
	}
	return "", 0, fmt.Errorf("docker: port %s of %s is not published", key, shortID(id))
}

// endpointHost maps a binding address to one reachable from this process.
// Wildcard and loopback bindings on a remote daemon resolve to the daemon host.
func (m *Manager) endpointHost(bindIP string) string {
	if u, err := url.Parse(m.cfg.Host); err == nil && u.Scheme == "tcp" && u.Hostname() != "" {
		switch bindIP {
		case "", "0.0.0.0", "::", "127.0.0.1":
			return u.Hostname()
		}
	}
	switch bindIP {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	}
	return bindIP
}

// List returns containers matching the filter, stopped ones included.
func (m *Manager) List(ctx context.Context, filter workload.ListFilter) ([]workload.WorkloadInfo, error) {
	f := filters.NewArgs()
	for k, v := range filter.Labels {
		f.Add("label", fmt.Sprintf("%s=%s", k, v))
	}
	if filter.Name != "" {
		f.Add("name", filter.Name)
	}

	containers, err := m.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: list containers: %w", err)
	}

	infos := make([]workload.WorkloadInfo, len(containers))
	for i, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		infos[i] = workload.WorkloadInfo{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			Status:  stateName(string(c.State), 0),
			Labels:  c.Labels,
			Created: time.Unix(c.Created, 0),
		}
	}
	return infos, nil
}

// HealthCheck verifies Docker is available.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if _, err := m.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker: health check failed: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Compile-time checks.
var (
	_ workload.Manager      = (*Manager)(nil)
	_ workload.ExecProvider = (*Manager)(nil)
	_ workload.PortResolver = (*Manager)(nil)
)
