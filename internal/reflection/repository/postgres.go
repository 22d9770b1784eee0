package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"affirmation-wave/backend/internal/reflection/domain"
)

// ErrAffirmationNotFound is returned by SelectAffirmation when the target row
// does not exist in the session (e.g. deleted by a concurrent request).
var ErrAffirmationNotFound = errors.New("affirmation not found")

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a reflection repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, category_id, wheel_focus_id, prompt, raw_belief_text,
	transcription_text, limiting_belief, generated_affirmation, approved_affirmation,
	ai_affirmation_audio_url, user_affirmation_audio_url, playback_count, last_played_at,
	belief_rerecord_count, belief_rerecorded_at, status, completed_at, created_at, updated_at`

// GetSession returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM reflection_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListSessionsByUser returns all sessions owned by userID, newest first.
func (r *PostgresRepository) ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM reflection_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSession persists the session. The session must have ID set.
func (r *PostgresRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reflection_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		s.ID, s.UserID, s.CategoryID, nullStr(s.WheelFocusID), s.Prompt, nullStr(s.RawBeliefText),
		nullStr(s.TranscriptionText), nullStr(s.LimitingBelief), nullStr(s.GeneratedAffirmation),
		nullStr(s.ApprovedAffirmation), nullStr(s.AIAffirmationAudioURL), nullStr(s.UserAffirmationAudioURL),
		s.PlaybackCount, nullTime(s.LastPlayedAt), s.BeliefRerecordCount, nullTime(s.BeliefRerecordedAt),
		string(s.Status), nullTime(s.CompletedAt), s.CreatedAt, s.UpdatedAt)
	return err
}

// UpdateSession rewrites all mutable session fields. Last writer wins; callers
// needing atomicity with affirmation changes go through SelectAffirmation.
func (r *PostgresRepository) UpdateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reflection_sessions SET
			wheel_focus_id = $2, raw_belief_text = $3, transcription_text = $4,
			limiting_belief = $5, generated_affirmation = $6, approved_affirmation = $7,
			ai_affirmation_audio_url = $8, user_affirmation_audio_url = $9,
			playback_count = $10, last_played_at = $11,
			belief_rerecord_count = $12, belief_rerecorded_at = $13,
			status = $14, completed_at = $15, updated_at = $16
		WHERE id = $1`,
		s.ID, nullStr(s.WheelFocusID), nullStr(s.RawBeliefText), nullStr(s.TranscriptionText),
		nullStr(s.LimitingBelief), nullStr(s.GeneratedAffirmation), nullStr(s.ApprovedAffirmation),
		nullStr(s.AIAffirmationAudioURL), nullStr(s.UserAffirmationAudioURL),
		s.PlaybackCount, nullTime(s.LastPlayedAt), s.BeliefRerecordCount, nullTime(s.BeliefRerecordedAt),
		string(s.Status), nullTime(s.CompletedAt), s.UpdatedAt)
	return err
}

// DeleteSession removes the session; affirmations and waves cascade.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reflection_sessions WHERE id = $1`, id)
	return err
}

// ListIncompleteByIDs returns the subset of the given sessions whose status is not COMPLETED.
func (r *PostgresRepository) ListIncompleteByIDs(ctx context.Context, ids []string) ([]*domain.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM reflection_sessions WHERE id = ANY($1) AND status <> $2`,
		ids, string(domain.StatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CompleteSessions marks the given sessions COMPLETED with completedAt = at in
// one statement. The status filter keeps overlapping sweeps idempotent.
func (r *PostgresRepository) CompleteSessions(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE reflection_sessions
		SET status = $2, completed_at = $3, updated_at = $3
		WHERE id = ANY($1) AND status <> $2`,
		ids, string(domain.StatusCompleted), at)
	return err
}

const affirmationColumns = `id, session_id, affirmation_text, audio_url, is_selected, ord,
	tts_voice_preference, created_at, updated_at`

// GetAffirmation returns the affirmation for id, or nil if not found.
func (r *PostgresRepository) GetAffirmation(ctx context.Context, id string) (*domain.Affirmation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+affirmationColumns+` FROM affirmations WHERE id = $1`, id)
	a, err := scanAffirmation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListAffirmations returns the session's affirmations in insertion order.
func (r *PostgresRepository) ListAffirmations(ctx context.Context, sessionID string) ([]*domain.Affirmation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+affirmationColumns+` FROM affirmations WHERE session_id = $1 ORDER BY ord`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Affirmation
	for rows.Next() {
		a, err := scanAffirmation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAffirmations returns how many affirmations the session has.
func (r *PostgresRepository) CountAffirmations(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM affirmations WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

// CreateAffirmation persists the affirmation. The affirmation must have ID and Order set.
func (r *PostgresRepository) CreateAffirmation(ctx context.Context, a *domain.Affirmation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO affirmations (`+affirmationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SessionID, a.AffirmationText, nullStr(a.AudioURL), a.IsSelected, a.Order,
		nullStr(a.TTSVoicePreference), a.CreatedAt, a.UpdatedAt)
	return err
}

// UpdateAffirmation rewrites the affirmation's mutable fields.
func (r *PostgresRepository) UpdateAffirmation(ctx context.Context, a *domain.Affirmation) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE affirmations SET
			affirmation_text = $2, audio_url = $3, is_selected = $4,
			tts_voice_preference = $5, updated_at = $6
		WHERE id = $1`,
		a.ID, a.AffirmationText, nullStr(a.AudioURL), a.IsSelected,
		nullStr(a.TTSVoicePreference), a.UpdatedAt)
	return err
}

// DeleteAffirmation removes the affirmation row.
func (r *PostgresRepository) DeleteAffirmation(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM affirmations WHERE id = $1`, id)
	return err
}

// GetSelectedAffirmation returns the session's selected affirmation, or nil if
// the session has none yet.
func (r *PostgresRepository) GetSelectedAffirmation(ctx context.Context, sessionID string) (*domain.Affirmation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+affirmationColumns+` FROM affirmations WHERE session_id = $1 AND is_selected`, sessionID)
	a, err := scanAffirmation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// SelectAffirmation runs the clear-then-set selection and the session mirror
// update as one transaction. audioURL and voice, when non-empty, are written
// onto the target before it is mirrored.
func (r *PostgresRepository) SelectAffirmation(ctx context.Context, sessionID, affirmationID, audioURL, voice string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Clear first so the partial unique index never sees two selected rows.
	if _, err := tx.ExecContext(ctx, `
		UPDATE affirmations SET is_selected = FALSE, updated_at = $2
		WHERE session_id = $1 AND is_selected AND id <> $3`,
		sessionID, at, affirmationID); err != nil {
		return err
	}

	var text string
	var audio sql.NullString
	err = tx.QueryRowContext(ctx, `
		UPDATE affirmations SET
			is_selected = TRUE,
			audio_url = COALESCE(NULLIF($3, ''), audio_url),
			tts_voice_preference = COALESCE(NULLIF($4, ''), tts_voice_preference),
			updated_at = $5
		WHERE id = $1 AND session_id = $2
		RETURNING affirmation_text, audio_url`,
		affirmationID, sessionID, audioURL, voice, at).Scan(&text, &audio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAffirmationNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE reflection_sessions SET
			generated_affirmation = $2, ai_affirmation_audio_url = $3, updated_at = $4
		WHERE id = $1`,
		sessionID, text, audio, at); err != nil {
		return err
	}

	return tx.Commit()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func strOf(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var wheelFocus, rawBelief, transcription, limiting, generated, approved sql.NullString
	var aiAudio, userAudio sql.NullString
	var lastPlayed, rerecorded, completed sql.NullTime
	var status string
	err := row.Scan(&s.ID, &s.UserID, &s.CategoryID, &wheelFocus, &s.Prompt, &rawBelief,
		&transcription, &limiting, &generated, &approved,
		&aiAudio, &userAudio, &s.PlaybackCount, &lastPlayed,
		&s.BeliefRerecordCount, &rerecorded, &status, &completed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.WheelFocusID = strOf(wheelFocus)
	s.RawBeliefText = strOf(rawBelief)
	s.TranscriptionText = strOf(transcription)
	s.LimitingBelief = strOf(limiting)
	s.GeneratedAffirmation = strOf(generated)
	s.ApprovedAffirmation = strOf(approved)
	s.AIAffirmationAudioURL = strOf(aiAudio)
	s.UserAffirmationAudioURL = strOf(userAudio)
	s.LastPlayedAt = timePtr(lastPlayed)
	s.BeliefRerecordedAt = timePtr(rerecorded)
	s.Status = domain.Status(status)
	s.CompletedAt = timePtr(completed)
	return &s, nil
}

func scanAffirmation(row rowScanner) (*domain.Affirmation, error) {
	var a domain.Affirmation
	var audio, voice sql.NullString
	err := row.Scan(&a.ID, &a.SessionID, &a.AffirmationText, &audio, &a.IsSelected, &a.Order,
		&voice, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.AudioURL = strOf(audio)
	a.TTSVoicePreference = strOf(voice)
	return &a, nil
}
