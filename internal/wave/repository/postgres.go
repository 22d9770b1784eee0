package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"affirmation-wave/backend/internal/wave/domain"
)

// ErrActiveWaveExists is returned when an insert or activation would give a
// session a second active wave.
var ErrActiveWaveExists = errors.New("session already has an active wave")

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a wave repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const waveColumns = `id, session_id, start_date, end_date, duration_days, is_active, created_at, updated_at`

// GetByID returns the wave for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Wave, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+waveColumns+` FROM waves WHERE id = $1`, id)
	w, err := scanWave(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// ListBySession returns the session's waves, newest first.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Wave, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waveColumns+` FROM waves WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Wave
	for rows.Next() {
		w, err := scanWave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateActive inserts the wave with IsActive forced true, failing with
// ErrActiveWaveExists when the session already has one.
func (r *PostgresRepository) CreateActive(ctx context.Context, w *domain.Wave) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM waves WHERE session_id = $1 AND is_active)`,
		w.SessionID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrActiveWaveExists
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO waves (`+waveColumns+`)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7)`,
		w.ID, w.SessionID, w.StartDate, w.EndDate, w.DurationDays, w.CreatedAt, w.UpdatedAt); err != nil {
		return err
	}
	w.IsActive = true
	return tx.Commit()
}

// Update rewrites the wave's window and active flag. Activation checks other
// waves of the same session, excluding this one, inside the same transaction.
func (r *PostgresRepository) Update(ctx context.Context, w *domain.Wave) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if w.IsActive {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM waves WHERE session_id = $1 AND is_active AND id <> $2)`,
			w.SessionID, w.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrActiveWaveExists
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE waves SET start_date = $2, end_date = $3, duration_days = $4, is_active = $5, updated_at = $6
		WHERE id = $1`,
		w.ID, w.StartDate, w.EndDate, w.DurationDays, w.IsActive, w.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the wave row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM waves WHERE id = $1`, id)
	return err
}

// ListExpiredActive returns all active waves whose end date is at or before now.
func (r *PostgresRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.Wave, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waveColumns+` FROM waves WHERE is_active AND end_date <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Wave
	for rows.Next() {
		w, err := scanWave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeactivateWaves clears IsActive on the given waves in one statement.
func (r *PostgresRepository) DeactivateWaves(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE waves SET is_active = FALSE, updated_at = $2 WHERE id = ANY($1) AND is_active`,
		ids, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWave(row rowScanner) (*domain.Wave, error) {
	var w domain.Wave
	err := row.Scan(&w.ID, &w.SessionID, &w.StartDate, &w.EndDate, &w.DurationDays,
		&w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
