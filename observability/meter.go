package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns the library meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// LifecycleMetrics holds the instruments recorded by the engine controller.
type LifecycleMetrics struct {
	initializeDuration metric.Float64Histogram
	restoreTotal       metric.Int64Counter
	restoreDuration    metric.Float64Histogram
	sessionsActive     metric.Int64UpDownCounter
}

// NewLifecycleMetrics creates the lifecycle instruments on meter.
func NewLifecycleMetrics(meter metric.Meter) (*LifecycleMetrics, error) {
	initializeDuration, err := meter.Float64Histogram("dbsnap.initialize.duration",
		metric.WithDescription("Time to start an engine, apply the schema and capture the baseline"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dbsnap.initialize.duration histogram: %w", err)
	}

	restoreTotal, err := meter.Int64Counter("dbsnap.restore.total",
		metric.WithDescription("Restores to baseline by backend and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dbsnap.restore.total counter: %w", err)
	}

	restoreDuration, err := meter.Float64Histogram("dbsnap.restore.duration",
		metric.WithDescription("Duration of restores to baseline"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dbsnap.restore.duration histogram: %w", err)
	}

	sessionsActive, err := meter.Int64UpDownCounter("dbsnap.sessions.active",
		metric.WithDescription("Leases currently held by tests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dbsnap.sessions.active counter: %w", err)
	}

	return &LifecycleMetrics{
		initializeDuration: initializeDuration,
		restoreTotal:       restoreTotal,
		restoreDuration:    restoreDuration,
		sessionsActive:     sessionsActive,
	}, nil
}

// RecordInitialize records a completed initialization.
func (m *LifecycleMetrics) RecordInitialize(ctx context.Context, backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.initializeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordRestore records a restore attempt and its outcome.
func (m *LifecycleMetrics) RecordRestore(ctx context.Context, backend string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.restoreTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
	m.restoreDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

// SessionOpened increments the active session count.
func (m *LifecycleMetrics) SessionOpened(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// SessionClosed decrements the active session count.
func (m *LifecycleMetrics) SessionClosed(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1, metric.WithAttributes(attribute.String("backend", backend)))
}
