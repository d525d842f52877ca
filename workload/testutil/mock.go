// Package testutil provides an in-memory workload.Manager for unit tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/dbsnap/workload"
)

type mockWorkload struct {
	req      workload.DeployRequest
	status   string
	exitCode int
	created  time.Time
}

// MockManager is an in-memory implementation of workload.Manager that also
// resolves ports and runs exec probes through ExecFunc.
type MockManager struct {
	// DeployErr, when set, is returned by Deploy.
	DeployErr error
	// LeakOnDeployErr makes a failing Deploy still create the workload, as a
	// runtime does when the request fails after the container was created.
	LeakOnDeployErr bool
	// ExecFunc answers Exec calls; nil reports success with empty output.
	ExecFunc func(id string, cmd []string) (*workload.ExecResult, error)
	// Host and HostPort are returned by HostEndpoint.
	Host     string
	HostPort int

	mu        sync.RWMutex
	workloads map[string]*mockWorkload
	nextID    int
	deploys   int
	removed   []string
	execs     int
}

var (
	_ workload.Manager      = (*MockManager)(nil)
	_ workload.ExecProvider = (*MockManager)(nil)
	_ workload.PortResolver = (*MockManager)(nil)
)

// NewMockManager creates an empty manager that resolves ports to
// 127.0.0.1:hostPort.
func NewMockManager(hostPort int) *MockManager {
	return &MockManager{
		Host:      "127.0.0.1",
		HostPort:  hostPort,
		workloads: make(map[string]*mockWorkload),
	}
}

// DeployCount returns how many successful deploys have happened.
func (m *MockManager) DeployCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deploys
}

// ExecCount returns how many Exec calls have been made.
func (m *MockManager) ExecCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.execs
}

// Removed returns the IDs passed to Remove, in order.
func (m *MockManager) Removed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.removed))
	copy(out, m.removed)
	return out
}

// Running returns the number of workloads currently present.
func (m *MockManager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workloads)
}

// Request returns the deploy request of a workload.
func (m *MockManager) Request(id string) (workload.DeployRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wl, ok := m.workloads[id]
	if !ok {
		return workload.DeployRequest{}, false
	}
	return wl.req, true
}

func (m *MockManager) Deploy(_ context.Context, req workload.DeployRequest) (*workload.DeployResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeployErr != nil && !m.LeakOnDeployErr {
		return nil, m.DeployErr
	}
	m.nextID++
	id := fmt.Sprintf("mock-%d", m.nextID)
	m.workloads[id] = &mockWorkload{req: req, status: workload.StatusRunning, created: time.Now()}
	if m.DeployErr != nil {
		return nil, m.DeployErr
	}
	m.deploys++
	return &workload.DeployResult{ID: id, Name: req.Name, Status: workload.StatusRunning}, nil
}

// Exit marks a workload as exited with the given code, as if its main
// process had terminated.
func (m *MockManager) Exit(id string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl, ok := m.workloads[id]
	if !ok {
		return
	}
	wl.exitCode = code
	wl.status = workload.StatusStopped
	if code != 0 {
		wl.status = workload.StatusError
	}
}

// Workloads returns the IDs of all workloads present.
func (m *MockManager) Workloads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.workloads))
	for id := range m.workloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MockManager) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	delete(m.workloads, id)
	return nil
}

func (m *MockManager) Status(_ context.Context, id string) (*workload.WorkloadStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wl, ok := m.workloads[id]
	if !ok {
		return &workload.WorkloadStatus{ID: id, Status: workload.StatusNotFound}, nil
	}
	return &workload.WorkloadStatus{
		ID:       id,
		Name:     wl.req.Name,
		Status:   wl.status,
		Running:  wl.status == workload.StatusRunning,
		ExitCode: wl.exitCode,
	}, nil
}

func (m *MockManager) Logs(_ context.Context, id string, _ workload.LogOptions) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.workloads[id]; !ok {
		return nil, fmt.Errorf("workload %q not found", id)
	}
	return []string{"mock log line"}, nil
}

func (m *MockManager) List(_ context.Context, filter workload.ListFilter) ([]workload.WorkloadInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]workload.WorkloadInfo, 0, len(m.workloads))
	for id, wl := range m.workloads {
		if filter.Name != "" && wl.req.Name != filter.Name {
			continue
		}
		if !matchLabels(wl.req.Labels, filter.Labels) {
			continue
		}
		result = append(result, workload.WorkloadInfo{
			ID:      id,
			Name:    wl.req.Name,
			Image:   wl.req.Image,
			Status:  wl.status,
			Labels:  wl.req.Labels,
			Created: wl.created,
		})
	}
	return result, nil
}

func (m *MockManager) HealthCheck(_ context.Context) error { return nil }

func (m *MockManager) Exec(_ context.Context, id string, cmd []string) (*workload.ExecResult, error) {
	m.mu.Lock()
	m.execs++
	_, ok := m.workloads[id]
	fn := m.ExecFunc
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("workload %q not found", id)
	}
	if fn == nil {
		return &workload.ExecResult{}, nil
	}
	return fn(id, cmd)
}

func (m *MockManager) HostEndpoint(_ context.Context, id string, _ workload.PortMapping) (string, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.workloads[id]; !ok {
		return "", 0, fmt.Errorf("workload %q not found", id)
	}
	return m.Host, m.HostPort, nil
}

func matchLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
