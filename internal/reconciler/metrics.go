package reconciler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "affirmation-wave/backend/internal/reconciler"

// metrics holds the reconciler's counters. Instruments come from the global
// meter provider; without a configured SDK they are no-ops.
type metrics struct {
	sweeps    metric.Int64Counter
	waves     metric.Int64Counter
	sessions  metric.Int64Counter
	notifyErr metric.Int64Counter
}

func newMetrics(logger *zap.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.sweeps, err = meter.Int64Counter(
		"wave.reconciler.sweeps_total",
		metric.WithDescription("Reconciliation sweeps started."),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		logger.Warn("failed to create sweeps counter", zap.Error(err))
	}

	m.waves, err = meter.Int64Counter(
		"wave.reconciler.waves_expired_total",
		metric.WithDescription("Waves deactivated because their end date passed."),
		metric.WithUnit("{wave}"),
	)
	if err != nil {
		logger.Warn("failed to create waves counter", zap.Error(err))
	}

	m.sessions, err = meter.Int64Counter(
		"wave.reconciler.sessions_completed_total",
		metric.WithDescription("Sessions moved to COMPLETED by the reconciler."),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		logger.Warn("failed to create sessions counter", zap.Error(err))
	}

	m.notifyErr, err = meter.Int64Counter(
		"wave.reconciler.side_effect_failures_total",
		metric.WithDescription("Counter increments or notifications that failed after completion."),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}
	return m
}

func (m *metrics) sweepStarted(ctx context.Context) {
	if m.sweeps != nil {
		m.sweeps.Add(ctx, 1)
	}
}

func (m *metrics) wavesExpired(ctx context.Context, n int) {
	if m.waves != nil {
		m.waves.Add(ctx, int64(n))
	}
}

func (m *metrics) sessionsCompleted(ctx context.Context, n int) {
	if m.sessions != nil {
		m.sessions.Add(ctx, int64(n))
	}
}

func (m *metrics) notifyFailed(ctx context.Context) {
	if m.notifyErr != nil {
		m.notifyErr.Add(ctx, 1)
	}
}
