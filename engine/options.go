package engine

import (
	"time"

	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/observability"
	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/snapshot"
)

const (
	DefaultStartupTimeout  = 60 * time.Second
	DefaultTeardownTimeout = 60 * time.Second
	DefaultSnapshotName    = "clean-db-snapshot"
)

// Options configures a Controller.
type Options struct {
	// Source brings a new instance to the baseline schema. Nil leaves the
	// instance empty.
	Source schema.Source
	// SnapshotName names the baseline snapshot.
	SnapshotName string
	// StartupTimeout bounds Initialize.
	StartupTimeout time.Duration
	// TeardownTimeout bounds stopping the base instance.
	TeardownTimeout time.Duration
	// Archive, when set, keeps blob baselines between runs.
	Archive *snapshot.Archive
	// Logger defaults to a no-op logger.
	Logger *logger.Logger
	// Metrics defaults to instruments on the global meter provider.
	Metrics *observability.LifecycleMetrics
}

func (o *Options) applyDefaults() {
	if o.SnapshotName == "" {
		o.SnapshotName = DefaultSnapshotName
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = DefaultStartupTimeout
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = DefaultTeardownTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
}
