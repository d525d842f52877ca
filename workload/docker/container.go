package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/workload"
)

// buildContainerConfig translates a DeployRequest into the create-call
// arguments. Ports with Host 0 are left for the daemon to assign.
func (m *Manager) buildContainerConfig(req workload.DeployRequest) (*container.Config, *container.HostConfig, *ocispec.Platform, error) {
	limits, err := req.Resources.Limits()
	if err != nil {
		return nil, nil, nil, err
	}

	cc := &container.Config{
		Image:  req.Image,
		Env:    envList(req.Environment),
		Labels: m.core.Labels(req.Labels),
		Cmd:    req.Command,
	}
	hc := &container.HostConfig{
		AutoRemove: req.AutoRemove,
		Tmpfs:      req.Tmpfs,
		Resources: container.Resources{
			Memory:   limits.MemoryBytes,
			NanoCPUs: limits.NanoCPUs,
		},
	}

	if len(req.Ports) > 0 {
		cc.ExposedPorts = nat.PortSet{}
		hc.PortBindings = nat.PortMap{}
	}
	for _, p := range req.Ports {
		port, err := nat.NewPort(p.Proto(), strconv.Itoa(p.Container))
		if err != nil {
			return nil, nil, nil, err
		}
		binding := nat.PortBinding{HostIP: m.cfg.BindAddress}
		if p.Host > 0 {
			binding.HostPort = strconv.Itoa(p.Host)
		}
		cc.ExposedPorts[port] = struct{}{}
		hc.PortBindings[port] = []nat.PortBinding{binding}
	}

	return cc, hc, m.resolvePlatform(req.Platform), nil
}

// envList renders env as sorted KEY=value pairs.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// ensureImage pulls imageName unless it is already present.
func (m *Manager) ensureImage(ctx context.Context, imageName, platform string) error {
	if _, err := m.client.ImageInspect(ctx, imageName); err == nil {
		return nil
	}

	opts := image.PullOptions{Platform: m.platformString(platform)}
	m.log.Info("pulling image", logger.Fields("image", imageName, "platform", opts.Platform))

	rc, err := m.client.ImagePull(ctx, imageName, opts)
	if err != nil {
		return fmt.Errorf("pull %s: %w", imageName, err)
	}
	defer rc.Close() //nolint:errcheck
	// The pull only completes once its progress stream is drained.
	_, err = io.Copy(io.Discard, rc)
	return err
}

func (m *Manager) platformString(platform string) string {
	if platform != "" {
		return platform
	}
	return m.cfg.Platform
}

// resolvePlatform parses "os/arch" into an OCI platform. Anything else means
// the daemon default.
func (m *Manager) resolvePlatform(platform string) *ocispec.Platform {
	osName, arch, ok := strings.Cut(m.platformString(platform), "/")
	if !ok || osName == "" || arch == "" {
		return nil
	}
	return &ocispec.Platform{OS: osName, Architecture: arch}
}
