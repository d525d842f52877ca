package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/observability"
)

func TestRun_StartFailureShutsDownTelemetry(t *testing.T) {
	var shutdowns int
	orig := initTelemetry
	initTelemetry = func(context.Context, observability.Config, *logger.Logger) (observability.ShutdownFunc, error) {
		return func(context.Context) error {
			shutdowns++
			return nil
		}, nil
	}
	t.Cleanup(func() { initTelemetry = orig })

	cfg := &Config{}
	cfg.Database.Driver = "mysql"
	cfg.ApplyDefaults()

	err := run(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
	assert.Equal(t, 1, shutdowns)
}
