package docker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/kbukum/dbsnap/workload"
)

// Exec runs cmd in a running container and waits for it to exit. A non-zero
// exit code is reported in the result, not as an error.
func (m *Manager) Exec(ctx context.Context, id string, cmd []string) (*workload.ExecResult, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("docker: exec: empty command")
	}
	created, err := m.client.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: exec %s: %w", cmd[0], err)
	}

	attached, err := m.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: exec %s: attach: %w", cmd[0], err)
	}
	defer attached.Close()

	stdout, stderr, err := demux(attached.Reader)
	if err != nil {
		return nil, fmt.Errorf("docker: exec %s: %w", cmd[0], err)
	}

	inspect, err := m.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("docker: exec %s: inspect: %w", cmd[0], err)
	}
	return &workload.ExecResult{ExitCode: inspect.ExitCode, Stdout: stdout, Stderr: stderr}, nil
}

// Logs returns the container's non-blank output lines, stdout and stderr
// interleaved.
func (m *Manager) Logs(ctx context.Context, id string, opts workload.LogOptions) ([]string, error) {
	logOpts := container.LogsOptions{ShowStdout: true, ShowStderr: true}
	if opts.Tail > 0 {
		logOpts.Tail = strconv.Itoa(opts.Tail)
	}
	if opts.Since > 0 {
		logOpts.Since = time.Now().Add(-opts.Since).Format(time.RFC3339)
	}

	rc, err := m.client.ContainerLogs(ctx, id, logOpts)
	if err != nil {
		return nil, fmt.Errorf("docker: logs %s: %w", shortID(id), err)
	}
	defer rc.Close() //nolint:errcheck

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()

	var lines []string
	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			lines = append(lines, sc.Text())
		}
	}
	if err := sc.Err(); err != nil {
		_ = pr.CloseWithError(err)
		return lines, fmt.Errorf("docker: logs %s: %w", shortID(id), err)
	}
	return lines, nil
}

// demux splits a multiplexed exec stream into stdout and stderr.
func demux(r io.Reader) (string, string, error) {
	var stdout, stderr strings.Builder
	if _, err := stdcopy.StdCopy(&stdout, &stderr, r); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}
