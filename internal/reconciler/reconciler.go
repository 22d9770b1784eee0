// Package reconciler runs the periodic sweep that deactivates expired waves
// and completes their owning sessions. It is the only path that moves a
// session into the terminal COMPLETED state without explicit user action.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"affirmation-wave/backend/internal/notification"
	reflectiondomain "affirmation-wave/backend/internal/reflection/domain"
	wavedomain "affirmation-wave/backend/internal/wave/domain"
)

// WaveRepo is the minimal wave repository needed by the reconciler.
type WaveRepo interface {
	ListExpiredActive(ctx context.Context, now time.Time) ([]*wavedomain.Wave, error)
	DeactivateWaves(ctx context.Context, ids []string, at time.Time) error
}

// SessionRepo is the minimal reflection repository needed by the reconciler.
type SessionRepo interface {
	ListIncompleteByIDs(ctx context.Context, ids []string) ([]*reflectiondomain.Session, error)
	CompleteSessions(ctx context.Context, ids []string, at time.Time) error
}

// UserRepo is the minimal user repository needed by the reconciler.
type UserRepo interface {
	IncrementCompletedSessions(ctx context.Context, userID string) (int, error)
}

// Reconciler sweeps expired waves on a fixed interval.
type Reconciler struct {
	waves    WaveRepo
	sessions SessionRepo
	users    UserRepo
	producer notification.Producer // may be nil; events are then dropped

	interval time.Duration
	logger   *zap.Logger
	nowFunc  func() time.Time
	metrics  *metrics
}

// New wires the reconciler. producer may be nil when no broker is configured.
func New(waves WaveRepo, sessions SessionRepo, users UserRepo, producer notification.Producer, interval time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Reconciler{
		waves:    waves,
		sessions: sessions,
		users:    users,
		producer: producer,
		interval: interval,
		logger:   logger,
		nowFunc:  time.Now,
		metrics:  newMetrics(logger),
	}
}

// Run sweeps on the configured interval until ctx is cancelled. A failed
// sweep is logged and retried on the next tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs one reconciliation pass: find expired active waves,
// deactivate them, complete their incomplete owning sessions, then bump each
// owner's lifetime counter and emit a completion event. The query filters
// (is_active, status != COMPLETED) make overlapping or repeated sweeps
// idempotent: at most one completion transition and one counter increment per
// session per expiry.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.nowFunc()
	r.metrics.sweepStarted(ctx)

	expired, err := r.waves.ListExpiredActive(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	waveIDs := make([]string, len(expired))
	sessionIDSet := make(map[string]struct{}, len(expired))
	for i, w := range expired {
		waveIDs[i] = w.ID
		sessionIDSet[w.SessionID] = struct{}{}
	}
	sessionIDs := make([]string, 0, len(sessionIDSet))
	for id := range sessionIDSet {
		sessionIDs = append(sessionIDs, id)
	}

	sessions, err := r.sessions.ListIncompleteByIDs(ctx, sessionIDs)
	if err != nil {
		return err
	}

	if err := r.waves.DeactivateWaves(ctx, waveIDs, now); err != nil {
		return err
	}
	r.metrics.wavesExpired(ctx, len(waveIDs))

	if len(sessions) == 0 {
		return nil
	}
	toComplete := make([]string, len(sessions))
	for i, s := range sessions {
		toComplete[i] = s.ID
	}
	if err := r.sessions.CompleteSessions(ctx, toComplete, now); err != nil {
		return err
	}
	r.metrics.sessionsCompleted(ctx, len(toComplete))
	r.logger.Info("completed expired sessions",
		zap.Int("waves", len(waveIDs)), zap.Int("sessions", len(toComplete)))

	// Side effects after the committed transition; failures are logged, never
	// rolled back.
	for _, s := range sessions {
		total, err := r.users.IncrementCompletedSessions(ctx, s.UserID)
		if err != nil {
			r.metrics.notifyFailed(ctx)
			r.logger.Error("completed-session counter increment failed",
				zap.String("user_id", s.UserID), zap.String("session_id", s.ID), zap.Error(err))
			continue
		}
		notification.EmitAsync(r.producer, &notification.CompletionEvent{
			UserID:                 s.UserID,
			SessionID:              s.ID,
			TotalCompletedSessions: total,
		})
	}
	return nil
}
