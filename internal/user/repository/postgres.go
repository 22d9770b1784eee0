package repository

import (
	"context"
	"database/sql"
	"errors"

	"affirmation-wave/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, principal_id, default_tts_voice, completed_session_count, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByPrincipal returns the user with the given external principal id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByPrincipal(ctx context.Context, principalID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE principal_id = $1`, principalID)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	voice := sql.NullString{String: u.DefaultTTSVoice, Valid: u.DefaultTTSVoice != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, principal_id, default_tts_voice, completed_session_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.PrincipalID, voice, u.CompletedSessionCount, u.CreatedAt, u.UpdatedAt)
	return err
}

// IncrementCompletedSessions adds one to the user's lifetime completed-session
// counter and returns the new total. Returns an error if the user does not exist.
func (r *PostgresRepository) IncrementCompletedSessions(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET completed_session_count = completed_session_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING completed_session_count`, userID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.New("user not found")
		}
		return 0, err
	}
	return total, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var voice sql.NullString
	err := row.Scan(&u.ID, &u.PrincipalID, &voice, &u.CompletedSessionCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if voice.Valid {
		u.DefaultTTSVoice = voice.String
	}
	return &u, nil
}
