package docker

import (
	"bytes"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/dbsnap/workload"
)

func newTestManager(t *testing.T, cfg *Config) *Manager {
	t.Helper()
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	m, err := NewManager(cfg, workload.Config{DefaultLabels: map[string]string{"suite": "default"}}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("DOCKER_HOST", "")
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, "127.0.0.1", cfg.BindAddress)
	require.NoError(t, cfg.Validate())

	cfg.TLS = &TLSConfig{Cert: "c"}
	assert.Error(t, cfg.Validate())
}

func TestBuildContainerConfig_EphemeralPort(t *testing.T) {
	m := newTestManager(t, &Config{Host: DefaultHost})

	cc, hc, plat, err := m.buildContainerConfig(workload.DeployRequest{
		Image:       "postgres:17",
		Environment: map[string]string{"POSTGRES_USER": "u", "POSTGRES_DB": "test"},
		Labels:      map[string]string{"suite": "override"},
		Ports:       []workload.PortMapping{{Container: 5432}},
		Tmpfs:       map[string]string{"/var/lib/postgresql/data": "rw"},
		Resources:   &workload.ResourceConfig{MemoryLimit: "512m"},
	})
	require.NoError(t, err)

	assert.Nil(t, plat)
	assert.Equal(t, []string{"POSTGRES_DB=test", "POSTGRES_USER=u"}, cc.Env)
	assert.Equal(t, "override", cc.Labels["suite"])
	assert.Equal(t, workload.ManagedByValue, cc.Labels[workload.LabelManagedBy])

	port := nat.Port("5432/tcp")
	assert.Contains(t, cc.ExposedPorts, port)
	require.Len(t, hc.PortBindings[port], 1)
	assert.Equal(t, "", hc.PortBindings[port][0].HostPort)
	assert.Equal(t, "127.0.0.1", hc.PortBindings[port][0].HostIP)
	assert.Equal(t, int64(512*1024*1024), hc.Memory)
	assert.Equal(t, "rw", hc.Tmpfs["/var/lib/postgresql/data"])
}

func TestBuildContainerConfig_FixedPortAndPlatform(t *testing.T) {
	m := newTestManager(t, &Config{Host: DefaultHost, Platform: "linux/amd64"})

	_, hc, plat, err := m.buildContainerConfig(workload.DeployRequest{
		Image: "postgres:17",
		Ports: []workload.PortMapping{{Host: 15432, Container: 5432}},
	})
	require.NoError(t, err)

	assert.Equal(t, "15432", hc.PortBindings[nat.Port("5432/tcp")][0].HostPort)
	require.NotNil(t, plat)
	assert.Equal(t, "linux", plat.OS)
	assert.Equal(t, "amd64", plat.Architecture)
}

func TestBuildContainerConfig_InvalidResources(t *testing.T) {
	m := newTestManager(t, &Config{Host: DefaultHost})

	_, _, _, err := m.buildContainerConfig(workload.DeployRequest{
		Image:     "postgres:17",
		Resources: &workload.ResourceConfig{MemoryLimit: "plenty"},
	})
	assert.Error(t, err)
}

func TestDemux(t *testing.T) {
	var buf bytes.Buffer
	_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte("accepting connections\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte("warning\n"))
	require.NoError(t, err)

	stdout, stderr, err := demux(&buf)
	require.NoError(t, err)
	assert.Equal(t, "accepting connections\n", stdout)
	assert.Equal(t, "warning\n", stderr)
}

func TestStateName(t *testing.T) {
	tests := []struct {
		state    string
		exitCode int
		want     string
	}{
		{"running", 0, workload.StatusRunning},
		{"paused", 0, workload.StatusRunning},
		{"created", 0, workload.StatusCreated},
		{"restarting", 1, workload.StatusRestarting},
		{"exited", 0, workload.StatusStopped},
		{"exited", 1, workload.StatusError},
		{"dead", 0, workload.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, stateName(tt.state, tt.exitCode))
		})
	}
}

func TestParseDockerTime(t *testing.T) {
	assert.True(t, parseDockerTime("0001-01-01T00:00:00Z").IsZero())
	assert.True(t, parseDockerTime("").IsZero())

	got := parseDockerTime("2024-05-01T10:20:30.123456789Z")
	assert.Equal(t, time.Date(2024, 5, 1, 10, 20, 30, 123456789, time.UTC), got)
}

func TestEndpointHost(t *testing.T) {
	local := newTestManager(t, &Config{Host: DefaultHost})
	assert.Equal(t, "127.0.0.1", local.endpointHost("0.0.0.0"))
	assert.Equal(t, "127.0.0.1", local.endpointHost(""))
	assert.Equal(t, "10.0.0.5", local.endpointHost("10.0.0.5"))

	remote := newTestManager(t, &Config{Host: "tcp://docker.internal:2375"})
	assert.Equal(t, "docker.internal", remote.endpointHost("127.0.0.1"))
	assert.Equal(t, "docker.internal", remote.endpointHost("0.0.0.0"))
}

func TestFactory_RejectsWrongConfigType(t *testing.T) {
	_, err := workload.New(workload.Config{}, "not-a-config", nil)
	assert.Error(t, err)
}
