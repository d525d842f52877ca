package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/resilience"
	"github.com/kbukum/dbsnap/workload"
)

// LabelInstance carries the engine instance ID on containers.
const LabelInstance = "dbsnap.instance"

// errExited stops the readiness poll once the server process is gone.
var errExited = stderrors.New("container exited")

// workloads returns the container runtime, creating a Docker manager on
// first use.
func (b *Backend) workloads() (workload.Manager, error) {
	b.managerOnce.Do(func() {
		if b.manager != nil {
			return
		}
		dockerCfg := b.cfg.Docker
		b.manager, b.managerErr = workload.New(workload.Config{Provider: workload.ProviderDocker}, &dockerCfg, b.log)
	})
	return b.manager, b.managerErr
}

func (b *Backend) deployRequest(instanceID string) workload.DeployRequest {
	req := workload.DeployRequest{
		Image: b.cfg.Image,
		Command: []string{
			"postgres",
			"-c", "fsync=off",
			"-c", "synchronous_commit=off",
			"-c", "full_page_writes=off",
		},
		Environment: map[string]string{
			"POSTGRES_DB":       b.cfg.Database,
			"POSTGRES_USER":     b.cfg.Username,
			"POSTGRES_PASSWORD": b.cfg.Password,
		},
		Labels: map[string]string{LabelInstance: instanceID},
		Ports:  []workload.PortMapping{{Container: containerPort}},
	}
	if !b.cfg.DisableTmpfs {
		req.Tmpfs = map[string]string{dataDir: "rw"}
	}
	if b.cfg.MemoryLimit != "" || b.cfg.CPULimit != "" {
		req.Resources = &workload.ResourceConfig{CPULimit: b.cfg.CPULimit, MemoryLimit: b.cfg.MemoryLimit}
	}
	return req
}

// startContainer runs a server container and waits for it to accept TCP
// connections from inside the container and from this process.
func (b *Backend) startContainer(ctx context.Context) (*engine.Instance, error) {
	mgr, err := b.workloads()
	if err != nil {
		return nil, errors.Provisioning(BackendName, err)
	}
	if err := mgr.HealthCheck(ctx); err != nil {
		return nil, errors.Provisioning(BackendName, err)
	}
	execer, ok := mgr.(workload.ExecProvider)
	if !ok {
		return nil, errors.Provisioning(BackendName, fmt.Errorf("container runtime %T cannot exec", mgr))
	}
	ports, ok := mgr.(workload.PortResolver)
	if !ok {
		return nil, errors.Provisioning(BackendName, fmt.Errorf("container runtime %T cannot resolve ports", mgr))
	}

	inst := engine.NewInstance(BackendName, DriverName, "", "")
	res, err := mgr.Deploy(ctx, b.deployRequest(inst.ID))
	if err != nil {
		// A create that outlived its request leaves a labelled container.
		if serr := b.removeInstance(context.WithoutCancel(ctx), mgr, inst.ID); serr != nil {
			b.log.Error("failed to remove leaked containers", logger.MergeWithError(
				logger.Fields(logger.FieldInstanceID, inst.ID), serr))
		}
		return nil, errors.Provisioning(BackendName, err)
	}
	inst.Location = res.ID

	log := b.log.WithFields(logger.Fields(
		logger.FieldInstanceID, inst.ID,
		logger.FieldContainerID, shortID(res.ID),
	))

	fail := func(err error) (*engine.Instance, error) {
		appErr := errors.Provisioning(BackendName, err)
		cleanup := context.WithoutCancel(ctx)
		if lines, lerr := mgr.Logs(cleanup, res.ID, workload.LogOptions{Tail: 20}); lerr == nil && len(lines) > 0 {
			appErr = appErr.WithDetail("logs", strings.Join(lines, "\n"))
		}
		if rerr := mgr.Remove(cleanup, res.ID); rerr != nil {
			log.Error("failed to remove container", logger.ErrorFields("remove", rerr))
		}
		return nil, appErr
	}

	// pg_isready over TCP: the entrypoint's init-time server listens on the
	// unix socket only.
	probe := []string{"pg_isready", "-h", "127.0.0.1", "-p", fmt.Sprint(containerPort), "-U", b.cfg.Username, "-d", b.cfg.Database}
	pollCfg := resilience.PollConfig()
	pollCfg.RetryIf = func(err error) bool {
		return resilience.DefaultRetryIf(err) && !stderrors.Is(err, errExited)
	}
	err = resilience.RetryFunc(ctx, pollCfg, func(ctx context.Context) error {
		if err := checkRunning(ctx, mgr, res.ID); err != nil {
			return err
		}
		out, err := execer.Exec(ctx, res.ID, probe)
		if err != nil {
			return err
		}
		if out.ExitCode != 0 {
			return fmt.Errorf("pg_isready exited %d: %s", out.ExitCode, strings.TrimSpace(out.Stdout+out.Stderr))
		}
		return nil
	})
	if err != nil {
		return fail(fmt.Errorf("server not ready: %w", err))
	}

	host, port, err := ports.HostEndpoint(ctx, res.ID, workload.PortMapping{Container: containerPort})
	if err != nil {
		return fail(err)
	}
	inst.DSN = buildDSN(b.cfg.Username, b.cfg.Password, host, port, b.cfg.Database)

	if err := resilience.Poll(ctx, func(ctx context.Context) error { return b.ping(ctx, inst.DSN) }); err != nil {
		return fail(fmt.Errorf("server unreachable at %s:%d: %w", host, port, err))
	}

	inst.State = &instanceState{
		adminDSN:    buildDSN(b.cfg.Username, b.cfg.Password, host, port, "postgres"),
		database:    b.cfg.Database,
		owner:       b.cfg.Username,
		containerID: res.ID,
	}
	log.Info("postgres container ready", logger.Fields("endpoint", fmt.Sprintf("%s:%d", host, port)))
	return inst, nil
}

// checkRunning returns errExited, with the exit code, when the container is
// no longer running.
func checkRunning(ctx context.Context, mgr workload.Manager, id string) error {
	st, err := mgr.Status(ctx, id)
	if err != nil {
		return err
	}
	if st.Running {
		return nil
	}
	if st.OOMKilled {
		return fmt.Errorf("%w: killed for exceeding its memory limit", errExited)
	}
	return fmt.Errorf("%w: status %s, exit code %d", errExited, st.Status, st.ExitCode)
}

// removeInstance removes every container labelled with the instance ID.
func (b *Backend) removeInstance(ctx context.Context, mgr workload.Manager, instanceID string) error {
	found, err := mgr.List(ctx, workload.ListFilter{Labels: map[string]string{LabelInstance: instanceID}})
	if err != nil {
		return err
	}
	var errs []error
	for _, w := range found {
		if err := mgr.Remove(ctx, w.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		b.log.Debug("container removed", logger.Fields(
			logger.FieldInstanceID, instanceID,
			logger.FieldContainerID, shortID(w.ID),
		))
	}
	return stderrors.Join(errs...)
}
