package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/dbsnap/component"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/observability"
	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/snapshot"
)

type initCall struct {
	done chan struct{}
	err  error
}

// Controller drives a Backend through initialize, restore and teardown.
// It is safe for concurrent use.
type Controller struct {
	backend Backend
	opts    Options
	log     *logger.Logger
	metrics *observability.LifecycleMetrics

	// lifecycle serializes initialization and teardown.
	lifecycle sync.Mutex
	// inflight counts restores that have not yet become leases.
	inflight sync.WaitGroup

	mu         sync.Mutex
	state      State
	generation uint64
	call       *initCall
	base       *Instance
	baseline   *snapshot.Snapshot
	slot       chan struct{}
	restoring  int
	leases     map[*Lease]struct{}
}

var _ component.Component = (*Controller)(nil)

// New creates a controller for backend. Nothing is started until Initialize.
func New(backend Backend, opts Options) *Controller {
	opts.applyDefaults()

	log := opts.Logger.WithComponent("engine").WithFields(logger.Fields(logger.FieldBackend, backend.Name()))

	metrics := opts.Metrics
	if metrics == nil {
		m, err := observability.NewLifecycleMetrics(observability.Meter())
		if err != nil {
			log.Warn("lifecycle metrics disabled", logger.ErrorFields("metrics", err))
		}
		metrics = m
	}

	return &Controller{
		backend: backend,
		opts:    opts,
		log:     log,
		metrics: metrics,
		leases:  make(map[*Lease]struct{}),
	}
}

// Backend returns the controlled backend.
func (c *Controller) Backend() Backend { return c.backend }

// State returns the current lifecycle state. While any restore is running
// the state is StateRestoring.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateReady && c.restoring > 0 {
		return StateRestoring
	}
	return c.state
}

// Baseline returns the captured baseline, or nil before initialization.
func (c *Controller) Baseline() *snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline
}

// Initialize starts the backend, applies the schema and captures the
// baseline. It is a no-op once initialized; concurrent callers share the
// in-flight run and its result. On failure the partial instance is stopped
// and the controller stays uninitialized.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state.acquirable() {
		c.mu.Unlock()
		return nil
	}
	if call := c.call; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &initCall{done: make(chan struct{})}
	c.call = call
	c.mu.Unlock()

	c.lifecycle.Lock()
	err := c.initialize(ctx)
	c.lifecycle.Unlock()

	c.mu.Lock()
	c.call = nil
	c.mu.Unlock()
	call.err = err
	close(call.done)
	return err
}

func (c *Controller) initialize(ctx context.Context) (err error) {
	c.setState(StateStarting)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.opts.StartupTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanInitialize,
		attribute.String(observability.AttrBackend, c.backend.Name()),
	)
	defer func() { observability.EndSpan(span, err) }()

	c.log.Info("initializing test database")

	inst, err := c.backend.Start(ctx)
	if err != nil {
		c.setState(StateUninitialized)
		err = c.startupError(ctx, err)
		c.log.Error("engine start failed", logger.ErrorFields("start", err))
		return err
	}

	snap, err := c.captureBaseline(ctx, inst)
	if err != nil {
		if ctx.Err() != nil && !errors.IsAppError(err) {
			err = errors.Provisioning(c.backend.Name(), err)
		}
		c.stopInstance(context.WithoutCancel(ctx), inst)
		c.setState(StateUninitialized)
		c.log.Error("baseline failed", logger.ErrorFields("baseline", err))
		return err
	}

	c.mu.Lock()
	c.base = inst
	c.baseline = snap
	c.generation++
	if c.backend.Mode() == RestoreInPlace {
		c.slot = make(chan struct{}, 1)
	}
	c.state = StateReady
	c.mu.Unlock()

	d := time.Since(start)
	c.metrics.RecordInitialize(ctx, c.backend.Name(), d)
	span.SetAttributes(
		attribute.String(observability.AttrInstanceID, inst.ID),
		attribute.String(observability.AttrSnapshot, snap.Name()),
	)
	c.log.Info("test database ready", logger.DurationFields("initialize", d))
	return nil
}

func (c *Controller) startupError(ctx context.Context, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	if ctx.Err() != nil {
		return errors.Provisioning(c.backend.Name(), fmt.Errorf("startup timed out after %s: %w", c.opts.StartupTimeout, err))
	}
	return errors.Provisioning(c.backend.Name(), err)
}

// captureBaseline applies the schema source to inst and snapshots it, or
// loads a matching baseline from the archive.
func (c *Controller) captureBaseline(ctx context.Context, inst *Instance) (*snapshot.Snapshot, error) {
	fingerprint, blob := c.archiveKey()
	if fingerprint != "" {
		snap, found, err := c.opts.Archive.Load(ctx, c.backend.Name(), fingerprint, c.opts.SnapshotName, blob.ContentType())
		switch {
		case err != nil:
			c.log.Warn("discarding archived baseline", logger.ErrorFields("archive_load", err))
			if derr := c.opts.Archive.Delete(ctx, c.backend.Name(), fingerprint, c.opts.SnapshotName); derr != nil {
				c.log.Warn("archive delete failed", logger.ErrorFields("archive_delete", derr))
			}
		case found:
			c.log.Info("baseline loaded from archive", logger.Fields(
				logger.FieldSnapshot, snap.Name(),
				"fingerprint", fingerprint,
			))
			return snap, nil
		}
	}

	if err := c.applySchema(ctx, inst); err != nil {
		return nil, err
	}

	snap, err := c.backend.Capture(ctx, inst, c.opts.SnapshotName)
	if err != nil {
		if !errors.IsAppError(err) {
			err = errors.Snapshot("capture", c.opts.SnapshotName, err)
		}
		return nil, err
	}
	c.log.Debug("baseline captured", logger.Fields(
		logger.FieldSnapshot, snap.Name(),
		"size", snap.Size(),
		"digest", snap.Digest(),
	))

	if fingerprint != "" {
		if err := c.opts.Archive.Save(ctx, c.backend.Name(), fingerprint, snap); err != nil {
			c.log.Warn("baseline not archived", logger.ErrorFields("archive_save", err))
		} else if _, err := c.opts.Archive.Prune(ctx, c.backend.Name(), fingerprint); err != nil {
			c.log.Warn("archive prune failed", logger.ErrorFields("archive_prune", err))
		}
	}
	return snap, nil
}

// archiveKey returns the schema fingerprint when the baseline can be
// archived, or "" when archiving does not apply.
func (c *Controller) archiveKey() (string, BlobBackend) {
	if c.opts.Archive == nil || c.opts.Source == nil {
		return "", nil
	}
	blob, ok := c.backend.(BlobBackend)
	if !ok || c.backend.Mode() != RestoreFresh {
		return "", nil
	}
	fp, err := c.opts.Source.Fingerprint(c.backend.Dialect())
	if err != nil {
		c.log.Warn("schema fingerprint unavailable, archive skipped", logger.ErrorFields("fingerprint", err))
		return "", nil
	}
	return fp, blob
}

func (c *Controller) applySchema(ctx context.Context, inst *Instance) error {
	if c.opts.Source == nil {
		return nil
	}
	db, err := sql.Open(inst.Driver, inst.DSN)
	if err != nil {
		return errors.Schema("open connection", err)
	}
	defer db.Close()

	err = c.opts.Source.Apply(ctx, db, schema.Target{
		Dialect: c.backend.Dialect(),
		Driver:  c.backend.MigrationDriver(),
	})
	if err != nil && !errors.IsAppError(err) {
		err = errors.Schema("apply", err)
	}
	return err
}

// Acquire restores the baseline and returns a lease on the restored
// instance. It fails with a NotInitialized error unless the controller is
// ready. For in-place backends it waits until the previous lease is released.
func (c *Controller) Acquire(ctx context.Context) (*Lease, error) {
	c.mu.Lock()
	if !c.state.acquirable() {
		state := c.state
		c.mu.Unlock()
		return nil, errors.NotInitialized("acquire", state.String())
	}
	gen := c.generation
	slot := c.slot
	c.mu.Unlock()

	if slot != nil {
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			return nil, c.waitExpired(ctx.Err())
		}
	}

	c.mu.Lock()
	if c.generation != gen || !c.state.acquirable() {
		state := c.state
		c.mu.Unlock()
		freeSlot(slot)
		return nil, errors.NotInitialized("acquire", state.String())
	}
	base, snap := c.base, c.baseline
	c.restoring++
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	inst, err := c.restore(ctx, base, snap)

	c.mu.Lock()
	c.restoring--
	if err != nil {
		c.mu.Unlock()
		freeSlot(slot)
		return nil, err
	}
	if c.generation != gen {
		state := c.state
		c.mu.Unlock()
		if inst != base {
			c.stopInstance(context.WithoutCancel(ctx), inst)
		}
		freeSlot(slot)
		return nil, errors.NotInitialized("acquire", state.String())
	}
	lease := &Lease{ctrl: c, inst: inst, owner: ownerFrom(ctx), acquired: time.Now()}
	c.leases[lease] = struct{}{}
	c.mu.Unlock()

	c.metrics.SessionOpened(ctx, c.backend.Name())
	return lease, nil
}

// waitExpired reports an Acquire that gave up waiting for the slot, naming
// the lease that still holds it.
func (c *Controller) waitExpired(cause error) error {
	err := errors.Timeout("acquire").WithCause(fmt.Errorf("waiting for previous lease: %w", cause))
	c.mu.Lock()
	defer c.mu.Unlock()
	for l := range c.leases {
		if l.owner != "" {
			err.WithDetail("held_by", l.owner)
		}
		err.WithDetail("held_since", l.acquired.Format(time.RFC3339Nano))
	}
	return err
}

func (c *Controller) restore(ctx context.Context, base *Instance, snap *snapshot.Snapshot) (inst *Instance, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanRestore,
		attribute.String(observability.AttrBackend, c.backend.Name()),
		attribute.String(observability.AttrSnapshot, snap.Name()),
	)
	defer func() {
		observability.EndSpan(span, err)
		c.metrics.RecordRestore(ctx, c.backend.Name(), time.Since(start), err)
	}()

	inst, err = c.backend.Restore(ctx, base, snap)
	if err != nil {
		if !errors.IsAppError(err) {
			err = errors.Snapshot("restore", snap.Name(), err)
		}
		c.log.Error("restore failed", logger.ErrorFields("restore", err))
		return nil, err
	}
	span.SetAttributes(attribute.String(observability.AttrInstanceID, inst.ID))
	c.log.Debug("restored to baseline", logger.DurationFields("restore", time.Since(start)))
	return inst, nil
}

func (c *Controller) release(ctx context.Context, l *Lease) error {
	c.mu.Lock()
	if _, ok := c.leases[l]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.leases, l)
	base, slot := c.base, c.slot
	c.mu.Unlock()

	c.metrics.SessionClosed(ctx, c.backend.Name())

	var err error
	if l.inst != base {
		err = c.backend.Stop(ctx, l.inst)
	}
	freeSlot(slot)
	return err
}

// Teardown releases outstanding leases, stops the base instance and resets
// the controller so Initialize may run again. It is a no-op when nothing is
// initialized.
func (c *Controller) Teardown(ctx context.Context) (err error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.state == StateUninitialized {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	c.generation++
	c.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, observability.SpanTeardown,
		attribute.String(observability.AttrBackend, c.backend.Name()),
	)
	defer func() { observability.EndSpan(span, err) }()

	c.inflight.Wait()

	c.mu.Lock()
	leases := make([]*Lease, 0, len(c.leases))
	for l := range c.leases {
		leases = append(leases, l)
	}
	base := c.base
	c.mu.Unlock()

	if len(leases) > 0 {
		c.log.Warn("releasing outstanding leases", logger.Fields("count", len(leases)))
	}
	var errs []error
	for _, l := range leases {
		if rerr := l.Release(ctx); rerr != nil {
			errs = append(errs, rerr)
		}
	}

	if base != nil {
		stopCtx, cancel := context.WithTimeout(ctx, c.opts.TeardownTimeout)
		if serr := c.backend.Stop(stopCtx, base); serr != nil {
			errs = append(errs, serr)
		}
		cancel()
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
	c.log.Info("test database stopped")

	c.mu.Lock()
	c.base = nil
	c.baseline = nil
	c.slot = nil
	c.leases = make(map[*Lease]struct{})
	c.state = StateUninitialized
	c.mu.Unlock()

	return errors.Join(errs...)
}

// stopInstance stops inst within the teardown timeout, logging failures.
func (c *Controller) stopInstance(ctx context.Context, inst *Instance) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.TeardownTimeout)
	defer cancel()
	if err := c.backend.Stop(ctx, inst); err != nil {
		c.log.Error("failed to stop instance", logger.Fields(
			logger.FieldInstanceID, inst.ID,
			logger.FieldError, err.Error(),
		))
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Debug("state changed", logger.Fields(logger.FieldState, s.String()))
}

func freeSlot(slot chan struct{}) {
	if slot == nil {
		return
	}
	select {
	case <-slot:
	default:
	}
}

// --- component.Component ---

// Name returns the component name.
func (c *Controller) Name() string { return "dbsnap." + c.backend.Name() }

// Start initializes the controller.
func (c *Controller) Start(ctx context.Context) error { return c.Initialize(ctx) }

// Stop tears the controller down.
func (c *Controller) Stop(ctx context.Context) error { return c.Teardown(ctx) }

// Health is healthy while leases can be acquired.
func (c *Controller) Health(_ context.Context) component.Health {
	state := c.State()
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: state.String()}
	if !state.acquirable() {
		h.Status = component.StatusUnhealthy
	}
	return h
}
