// Package service implements the reflection session lifecycle engine: belief
// capture, affirmation generation and curation, playback tracking, and the
// denormalized selected-affirmation mirror.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"affirmation-wave/backend/internal/apperr"
	categorydomain "affirmation-wave/backend/internal/category/domain"
	"affirmation-wave/backend/internal/reflection/domain"
	reflectionrepo "affirmation-wave/backend/internal/reflection/repository"
	"affirmation-wave/backend/internal/speech"
	userdomain "affirmation-wave/backend/internal/user/domain"
	wavedomain "affirmation-wave/backend/internal/wave/domain"
)

// fallbackAffirmationText is used when the belief-transformation service is
// unavailable. Availability over accuracy: generation still advances the
// workflow, and the row is stored exactly like a real one.
const fallbackAffirmationText = "I am capable of change, and today I choose thoughts that support me."

// SessionRepo is the minimal reflection repository needed by the engine.
type SessionRepo interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	CreateSession(ctx context.Context, s *domain.Session) error
	UpdateSession(ctx context.Context, s *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	GetAffirmation(ctx context.Context, id string) (*domain.Affirmation, error)
	ListAffirmations(ctx context.Context, sessionID string) ([]*domain.Affirmation, error)
	CountAffirmations(ctx context.Context, sessionID string) (int, error)
	CreateAffirmation(ctx context.Context, a *domain.Affirmation) error
	UpdateAffirmation(ctx context.Context, a *domain.Affirmation) error
	DeleteAffirmation(ctx context.Context, id string) error
	GetSelectedAffirmation(ctx context.Context, sessionID string) (*domain.Affirmation, error)
	SelectAffirmation(ctx context.Context, sessionID, affirmationID, audioURL, voice string, at time.Time) error
}

// WaveLister is the minimal wave repository needed by the engine (read side
// only; scheduling lives in the wave service).
type WaveLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]*wavedomain.Wave, error)
}

// UserRepo is the minimal user repository needed by the engine.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// CategoryRepo is the minimal category repository needed by the engine.
type CategoryRepo interface {
	GetByID(ctx context.Context, id string) (*categorydomain.Category, error)
}

// SessionView is a session with its affirmations and waves attached, as
// returned by every engine operation.
type SessionView struct {
	Session      *domain.Session
	Affirmations []*domain.Affirmation
	Waves        []*wavedomain.Wave
}

// BeliefInput carries a submitted belief: exactly one of Text or Audio.
type BeliefInput struct {
	Text  string
	Audio []byte
}

// Engine is the session lifecycle engine. All operations are scoped to the
// owning user; resources owned by someone else report not-found.
type Engine struct {
	sessions   SessionRepo
	waves      WaveLister
	users      UserRepo
	categories CategoryRepo

	transcriber speech.Transcriber
	transformer speech.Transformer
	synth       speech.Synthesizer
	assets      speech.AssetStore

	defaultVoice string
	logger       *zap.Logger
	nowFunc      func() time.Time
	newID        func() string
}

// NewEngine wires the engine. defaultVoice is the synthesis voice of last
// resort; logger must be non-nil.
func NewEngine(
	sessions SessionRepo,
	waves WaveLister,
	users UserRepo,
	categories CategoryRepo,
	transcriber speech.Transcriber,
	transformer speech.Transformer,
	synth speech.Synthesizer,
	assets speech.AssetStore,
	defaultVoice string,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sessions:     sessions,
		waves:        waves,
		users:        users,
		categories:   categories,
		transcriber:  transcriber,
		transformer:  transformer,
		synth:        synth,
		assets:       assets,
		defaultVoice: defaultVoice,
		logger:       logger,
		nowFunc:      time.Now,
		newID:        uuid.NewString,
	}
}

// CreateSession starts a new PENDING session with the category's prompt copied in.
func (e *Engine) CreateSession(ctx context.Context, userID, categoryID, wheelFocusID string) (*SessionView, error) {
	cat, err := e.categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, apperr.NotFound("category")
	}
	now := e.nowFunc()
	s := &domain.Session{
		ID:           e.newID(),
		UserID:       userID,
		CategoryID:   categoryID,
		WheelFocusID: wheelFocusID,
		Prompt:       cat.Prompt,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.sessions.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// GetSession returns the owned session with affirmations and waves attached.
func (e *Engine) GetSession(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// ListSessions returns all sessions owned by the user, newest first, without
// child rows attached.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return e.sessions.ListSessionsByUser(ctx, userID)
}

// DeleteSession removes the owned session; affirmations and waves cascade.
func (e *Engine) DeleteSession(ctx context.Context, userID, sessionID string) error {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return e.sessions.DeleteSession(ctx, s.ID)
}

// SubmitBelief captures the user's limiting belief from text or audio and
// advances PENDING to BELIEF_CAPTURED. Transcription failure is surfaced and
// nothing is persisted.
func (e *Engine) SubmitBelief(ctx context.Context, userID, sessionID string, in BeliefInput) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusPending {
		return nil, apperr.InvalidState("belief can only be submitted to a PENDING session; session is %s", s.Status)
	}

	text, transcribed, err := e.captureBelief(ctx, in)
	if err != nil {
		return nil, err
	}

	s.RawBeliefText = text
	if transcribed {
		s.TranscriptionText = text
	}
	s.Status = domain.StatusBeliefCaptured
	s.UpdatedAt = e.nowFunc()
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// ReRecordBelief replaces the captured belief. Permitted from BELIEF_CAPTURED
// and AFFIRMATION_GENERATED; coming from the latter clears the transformed
// belief and all affirmation audio mirrors and returns to BELIEF_CAPTURED.
func (e *Engine) ReRecordBelief(ctx context.Context, userID, sessionID string, in BeliefInput) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusBeliefCaptured && s.Status != domain.StatusAffirmationGenerated {
		return nil, apperr.InvalidState("belief can only be re-recorded from BELIEF_CAPTURED or AFFIRMATION_GENERATED; session is %s", s.Status)
	}

	text, transcribed, err := e.captureBelief(ctx, in)
	if err != nil {
		return nil, err
	}

	now := e.nowFunc()
	if s.Status == domain.StatusAffirmationGenerated {
		s.LimitingBelief = ""
		s.GeneratedAffirmation = ""
		s.AIAffirmationAudioURL = ""
		s.UserAffirmationAudioURL = ""
	}
	s.RawBeliefText = text
	s.TranscriptionText = ""
	if transcribed {
		s.TranscriptionText = text
	}
	s.BeliefRerecordCount++
	s.BeliefRerecordedAt = &now
	s.Status = domain.StatusBeliefCaptured
	s.UpdatedAt = now
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// GenerateAffirmation transforms the captured belief into a new candidate
// affirmation. The first candidate is auto-selected and voiced eagerly; later
// ones are appended unselected with audio deferred until selection. A
// transformation-service failure falls back to a placeholder so the workflow
// still advances; a synthesis failure leaves audio empty.
func (e *Engine) GenerateAffirmation(ctx context.Context, userID, sessionID, voiceOverride string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusBeliefCaptured && s.Status != domain.StatusAffirmationGenerated {
		return nil, apperr.InvalidState("affirmation can only be generated from BELIEF_CAPTURED or AFFIRMATION_GENERATED; session is %s", s.Status)
	}
	belief := strings.TrimSpace(s.RawBeliefText)
	if belief == "" {
		return nil, apperr.InvalidState("session has no captured belief text")
	}

	result, err := e.transformer.Transform(ctx, belief)
	if err != nil {
		e.logger.Warn("belief transformation failed, using fallback",
			zap.String("session_id", s.ID), zap.Error(err))
		result = &speech.Transformation{LimitingBelief: belief, AffirmationText: fallbackAffirmationText}
	}

	count, err := e.sessions.CountAffirmations(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	now := e.nowFunc()
	a := &domain.Affirmation{
		ID:              e.newID(),
		SessionID:       s.ID,
		AffirmationText: result.AffirmationText,
		Order:           count,
		IsSelected:      count == 0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if count == 0 {
		voice, err := e.resolveVoice(ctx, userID, voiceOverride, "")
		if err != nil {
			return nil, err
		}
		a.TTSVoicePreference = voice
		audioURL, err := e.synth.Synthesize(ctx, a.AffirmationText, voice)
		if err != nil {
			e.logger.Warn("synthesis failed, affirmation stored without audio",
				zap.String("session_id", s.ID), zap.Error(err))
		} else {
			a.AudioURL = audioURL
		}
	}
	if err := e.sessions.CreateAffirmation(ctx, a); err != nil {
		return nil, err
	}

	s.LimitingBelief = result.LimitingBelief
	if a.IsSelected {
		s.GeneratedAffirmation = a.AffirmationText
		s.AIAffirmationAudioURL = a.AudioURL
	}
	s.Status = domain.StatusAffirmationGenerated
	s.UpdatedAt = now
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// EditAffirmation rewrites the selected affirmation's text. Editing discards
// any synthesized audio; the next voice request resynthesizes.
func (e *Engine) EditAffirmation(ctx context.Context, userID, sessionID, text, voiceOverride string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to edit the affirmation; session is %s", s.Status)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.InvalidInput("affirmation text must not be empty")
	}
	sel, err := e.sessions.GetSelectedAffirmation(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return nil, apperr.InvalidState("session has no selected affirmation")
	}

	now := e.nowFunc()
	sel.AffirmationText = text
	sel.AudioURL = ""
	if voiceOverride != "" {
		sel.TTSVoicePreference = voiceOverride
	}
	sel.UpdatedAt = now
	if err := e.sessions.UpdateAffirmation(ctx, sel); err != nil {
		return nil, err
	}

	s.GeneratedAffirmation = text
	s.AIAffirmationAudioURL = ""
	s.UpdatedAt = now
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// EditBelief rewrites the belief text only; affirmations and audio are untouched.
func (e *Engine) EditBelief(ctx context.Context, userID, sessionID, text string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to edit the belief; session is %s", s.Status)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.InvalidInput("belief text must not be empty")
	}

	s.RawBeliefText = text
	if s.TranscriptionText != "" {
		s.TranscriptionText = text
	}
	s.UpdatedAt = e.nowFunc()
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// RecordUserAffirmation stores the user's own recording of the affirmation.
// Independent of which candidate is selected.
func (e *Engine) RecordUserAffirmation(ctx context.Context, userID, sessionID string, audio []byte) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to record audio; session is %s", s.Status)
	}
	if len(audio) == 0 {
		return nil, apperr.InvalidInput("audio payload must not be empty")
	}

	url, err := e.assets.Store(ctx, audio)
	if err != nil {
		return nil, apperr.Dependency("store audio", err)
	}
	s.UserAffirmationAudioURL = url
	s.UpdatedAt = e.nowFunc()
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// RegenerateVoice resynthesizes audio for the selected affirmation. Voice
// priority: explicit override, then the affirmation's stored voice, then the
// user's saved default. The chosen voice is persisted back onto the
// affirmation so it remembers it independent of later default changes.
func (e *Engine) RegenerateVoice(ctx context.Context, userID, sessionID, voiceOverride string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to regenerate voice; session is %s", s.Status)
	}
	sel, err := e.sessions.GetSelectedAffirmation(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return nil, apperr.InvalidState("session has no selected affirmation")
	}

	voice, err := e.resolveVoice(ctx, userID, voiceOverride, sel.TTSVoicePreference)
	if err != nil {
		return nil, err
	}
	audioURL, err := e.synth.Synthesize(ctx, sel.AffirmationText, voice)
	if err != nil {
		return nil, apperr.Dependency("synthesize", err)
	}

	now := e.nowFunc()
	sel.AudioURL = audioURL
	sel.TTSVoicePreference = voice
	sel.UpdatedAt = now
	if err := e.sessions.UpdateAffirmation(ctx, sel); err != nil {
		return nil, err
	}
	s.AIAffirmationAudioURL = audioURL
	s.UpdatedAt = now
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// SelectAffirmation makes the given candidate the session's live affirmation.
// Clearing the old selection, marking the new one, and mirroring its text and
// audio onto the session run as one atomic unit in the store. A candidate
// without audio is synthesized now; synthesis failure leaves audio empty but
// the selection still commits.
func (e *Engine) SelectAffirmation(ctx context.Context, userID, sessionID, affirmationID string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to select an affirmation; session is %s", s.Status)
	}
	target, err := e.sessions.GetAffirmation(ctx, affirmationID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.SessionID != s.ID {
		return nil, apperr.NotFound("affirmation")
	}

	var audioURL, voice string
	if target.AudioURL == "" {
		voice, err = e.resolveVoice(ctx, userID, "", target.TTSVoicePreference)
		if err != nil {
			return nil, err
		}
		audioURL, err = e.synth.Synthesize(ctx, target.AffirmationText, voice)
		if err != nil {
			e.logger.Warn("synthesis on selection failed, selecting without audio",
				zap.String("affirmation_id", target.ID), zap.Error(err))
			audioURL = ""
		}
	}

	if err := e.sessions.SelectAffirmation(ctx, s.ID, target.ID, audioURL, voice, e.nowFunc()); err != nil {
		if errors.Is(err, reflectionrepo.ErrAffirmationNotFound) {
			return nil, apperr.NotFound("affirmation")
		}
		return nil, err
	}

	s, err = e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// DeleteAffirmation removes a non-selected candidate. The session's only
// affirmation and the selected one are protected; the caller must select a
// different candidate first.
func (e *Engine) DeleteAffirmation(ctx context.Context, userID, sessionID, affirmationID string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to delete an affirmation; session is %s", s.Status)
	}
	target, err := e.sessions.GetAffirmation(ctx, affirmationID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.SessionID != s.ID {
		return nil, apperr.NotFound("affirmation")
	}
	count, err := e.sessions.CountAffirmations(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if count <= 1 {
		return nil, apperr.InvalidState("cannot delete the session's only affirmation")
	}
	if target.IsSelected {
		return nil, apperr.InvalidState("cannot delete the selected affirmation; select another first")
	}
	if err := e.sessions.DeleteAffirmation(ctx, target.ID); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// TrackPlayback bumps the playback counter and last-played timestamp.
func (e *Engine) TrackPlayback(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	s, err := e.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.HasAffirmation() {
		return nil, apperr.InvalidState("session must be AFFIRMATION_GENERATED or APPROVED to track playback; session is %s", s.Status)
	}
	now := e.nowFunc()
	s.PlaybackCount++
	s.LastPlayedAt = &now
	s.UpdatedAt = now
	if err := e.sessions.UpdateSession(ctx, s); err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// captureBelief validates a belief submission and, for audio, transcribes it.
// Returns the belief text and whether it came from transcription.
func (e *Engine) captureBelief(ctx context.Context, in BeliefInput) (string, bool, error) {
	hasText := strings.TrimSpace(in.Text) != ""
	hasAudio := len(in.Audio) > 0
	if hasText == hasAudio {
		return "", false, apperr.InvalidInput("exactly one of text or audio must be provided")
	}
	if hasText {
		return strings.TrimSpace(in.Text), false, nil
	}
	text, err := e.transcriber.Transcribe(ctx, in.Audio)
	if err != nil {
		return "", false, apperr.Dependency("transcribe", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, apperr.InvalidInput("transcription produced no text")
	}
	return text, true, nil
}

// resolveVoice picks the synthesis voice: explicit override, then the
// affirmation's stored voice, then the user's saved default, then the service
// default.
func (e *Engine) resolveVoice(ctx context.Context, userID, override, stored string) (string, error) {
	if override != "" {
		return override, nil
	}
	if stored != "" {
		return stored, nil
	}
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u != nil && u.DefaultTTSVoice != "" {
		return u.DefaultTTSVoice, nil
	}
	return e.defaultVoice, nil
}

// ownedSession loads the session and enforces ownership. Sessions owned by
// someone else report not-found.
func (e *Engine) ownedSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	s, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.UserID != userID {
		return nil, apperr.NotFound("session")
	}
	return s, nil
}

func (e *Engine) view(ctx context.Context, s *domain.Session) (*SessionView, error) {
	affirmations, err := e.sessions.ListAffirmations(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	waves, err := e.waves.ListBySession(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return &SessionView{Session: s, Affirmations: affirmations, Waves: waves}, nil
}
