// Package service implements wave scheduling: creating, updating, and
// deleting time-boxed listening windows under the one-active-wave-per-session
// invariant.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"affirmation-wave/backend/internal/apperr"
	reflectiondomain "affirmation-wave/backend/internal/reflection/domain"
	"affirmation-wave/backend/internal/wave/domain"
	waverepo "affirmation-wave/backend/internal/wave/repository"
)

// startDateGrace tolerates clock skew between client and server when
// validating that a start date is not in the past.
const startDateGrace = time.Minute

// WaveRepo is the minimal wave repository needed by the scheduler.
type WaveRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Wave, error)
	CreateActive(ctx context.Context, w *domain.Wave) error
	Update(ctx context.Context, w *domain.Wave) error
	Delete(ctx context.Context, id string) error
}

// SessionRepo is the minimal reflection repository needed by the scheduler
// (ownership and status checks only).
type SessionRepo interface {
	GetSession(ctx context.Context, id string) (*reflectiondomain.Session, error)
}

// UpdateParams carries the optional fields of a wave update. Nil means leave
// unchanged.
type UpdateParams struct {
	DurationDays *int
	StartDate    *time.Time
	IsActive     *bool
}

// Scheduler manages waves for reflection sessions.
type Scheduler struct {
	waves    WaveRepo
	sessions SessionRepo
	logger   *zap.Logger
	nowFunc  func() time.Time
	newID    func() string
}

// NewScheduler wires the scheduler. logger must be non-nil.
func NewScheduler(waves WaveRepo, sessions SessionRepo, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		waves:    waves,
		sessions: sessions,
		logger:   logger,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

// CreateWave starts a new active listening window for the session. The
// session must have a generated or approved affirmation and no active wave.
// startDate defaults to now and must not be in the past; the end date is
// always startDate + durationDays.
func (s *Scheduler) CreateWave(ctx context.Context, userID, sessionID string, durationDays int, startDate *time.Time) (*domain.Wave, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED before starting a wave; session is %s", session.Status)
	}
	if err := domain.ValidateDuration(durationDays); err != nil {
		return nil, apperr.InvalidInput("%s", err.Error())
	}

	now := s.nowFunc()
	start := now
	if startDate != nil {
		start = *startDate
		if start.Before(now.Add(-startDateGrace)) {
			return nil, apperr.InvalidInput("start date must not be in the past")
		}
	}

	w := &domain.Wave{
		ID:           s.newID(),
		SessionID:    session.ID,
		StartDate:    start,
		DurationDays: durationDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	w.Recompute()
	if err := s.waves.CreateActive(ctx, w); err != nil {
		if errors.Is(err, waverepo.ErrActiveWaveExists) {
			return nil, apperr.InvalidState("session already has an active wave")
		}
		return nil, err
	}
	return w, nil
}

// UpdateWave changes a wave's duration, start date, or active flag. Changing
// the duration recomputes the end date from the existing start; changing the
// start recomputes from the new start and the effective duration. Activating
// fails if another wave of the session is active; the wave being updated is
// excluded from that check.
func (s *Scheduler) UpdateWave(ctx context.Context, userID, waveID string, p UpdateParams) (*domain.Wave, error) {
	w, session, err := s.ownedWave(ctx, userID, waveID)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	if p.DurationDays != nil {
		if err := domain.ValidateDuration(*p.DurationDays); err != nil {
			return nil, apperr.InvalidInput("%s", err.Error())
		}
		w.DurationDays = *p.DurationDays
	}
	if p.StartDate != nil {
		if p.StartDate.Before(now.Add(-startDateGrace)) {
			return nil, apperr.InvalidInput("start date must not be in the past")
		}
		w.StartDate = *p.StartDate
	}
	w.Recompute()

	if p.IsActive != nil {
		if *p.IsActive && session.Status.Terminal() {
			return nil, apperr.InvalidState("cannot activate a wave of a COMPLETED session")
		}
		w.IsActive = *p.IsActive
	}

	w.UpdatedAt = now
	if err := s.waves.Update(ctx, w); err != nil {
		if errors.Is(err, waverepo.ErrActiveWaveExists) {
			return nil, apperr.InvalidState("another wave of this session is already active")
		}
		return nil, err
	}
	return w, nil
}

// DeleteWave removes the wave. Unconditional given ownership.
func (s *Scheduler) DeleteWave(ctx context.Context, userID, waveID string) error {
	w, _, err := s.ownedWave(ctx, userID, waveID)
	if err != nil {
		return err
	}
	return s.waves.Delete(ctx, w.ID)
}

func (s *Scheduler) ownedSession(ctx context.Context, userID, sessionID string) (*reflectiondomain.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, apperr.NotFound("session")
	}
	return session, nil
}

// ownedWave resolves the wave and its owning session, enforcing ownership
// through the session. Waves of sessions owned by others report not-found.
func (s *Scheduler) ownedWave(ctx context.Context, userID, waveID string) (*domain.Wave, *reflectiondomain.Session, error) {
	w, err := s.waves.GetByID(ctx, waveID)
	if err != nil {
		return nil, nil, err
	}
	if w == nil {
		return nil, nil, apperr.NotFound("wave")
	}
	session, err := s.sessions.GetSession(ctx, w.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, nil, apperr.NotFound("wave")
	}
	return w, session, nil
}
