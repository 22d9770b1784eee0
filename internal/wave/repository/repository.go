package repository

import (
	"context"
	"time"

	"affirmation-wave/backend/internal/wave/domain"
)

// Repository defines persistence for waves.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Wave, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Wave, error)

	// CreateActive inserts the wave with IsActive true, failing with
	// ErrActiveWaveExists when the session already has an active wave. The
	// check and insert run in one transaction.
	CreateActive(ctx context.Context, w *domain.Wave) error
	// Update rewrites the wave's window fields and active flag. When
	// activating, it fails with ErrActiveWaveExists if another wave of the
	// same session is active; the wave being updated is excluded from that
	// check. Check and write run in one transaction.
	Update(ctx context.Context, w *domain.Wave) error
	Delete(ctx context.Context, id string) error

	// ListExpiredActive returns all waves still marked active whose end date
	// is at or before now.
	ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.Wave, error)
	// DeactivateWaves clears IsActive on the given waves in one batch.
	// Already-inactive waves are untouched, keeping overlapping sweeps safe.
	DeactivateWaves(ctx context.Context, ids []string, at time.Time) error
}
