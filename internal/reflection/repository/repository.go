package repository

import (
	"context"
	"time"

	"affirmation-wave/backend/internal/reflection/domain"
)

// Repository defines persistence for reflection sessions and their affirmations.
type Repository interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	CreateSession(ctx context.Context, s *domain.Session) error
	UpdateSession(ctx context.Context, s *domain.Session) error
	DeleteSession(ctx context.Context, id string) error

	// ListIncompleteByIDs returns the subset of the given sessions whose
	// status is not COMPLETED. Used by the reconciler to exclude sessions a
	// previous sweep already completed.
	ListIncompleteByIDs(ctx context.Context, ids []string) ([]*domain.Session, error)
	// CompleteSessions marks the given sessions COMPLETED with completedAt = at
	// in one batch. Sessions already COMPLETED are left untouched.
	CompleteSessions(ctx context.Context, ids []string, at time.Time) error

	GetAffirmation(ctx context.Context, id string) (*domain.Affirmation, error)
	ListAffirmations(ctx context.Context, sessionID string) ([]*domain.Affirmation, error)
	CountAffirmations(ctx context.Context, sessionID string) (int, error)
	CreateAffirmation(ctx context.Context, a *domain.Affirmation) error
	UpdateAffirmation(ctx context.Context, a *domain.Affirmation) error
	DeleteAffirmation(ctx context.Context, id string) error
	GetSelectedAffirmation(ctx context.Context, sessionID string) (*domain.Affirmation, error)

	// SelectAffirmation atomically clears IsSelected on every other
	// affirmation of the session, marks the target selected (recording
	// audioURL and voice when non-empty), and mirrors the target's text and
	// audio onto the session's denormalized fields. The whole unit runs in
	// one transaction so concurrent selections cannot leave two or zero
	// affirmations selected.
	SelectAffirmation(ctx context.Context, sessionID, affirmationID, audioURL, voice string, at time.Time) error
}
