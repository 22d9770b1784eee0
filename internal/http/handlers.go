package http

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"affirmation-wave/backend/internal/apperr"
	reflectiondomain "affirmation-wave/backend/internal/reflection/domain"
	reflectionservice "affirmation-wave/backend/internal/reflection/service"
	wavedomain "affirmation-wave/backend/internal/wave/domain"
	waveservice "affirmation-wave/backend/internal/wave/service"
)

type createSessionRequest struct {
	CategoryID   string `json:"category_id"`
	WheelFocusID string `json:"wheel_focus_id,omitempty"`
}

type beliefRequest struct {
	Text        string `json:"text,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
}

type editTextRequest struct {
	Text          string `json:"text"`
	VoiceOverride string `json:"voice_override,omitempty"`
}

type voiceRequest struct {
	VoiceOverride string `json:"voice_override,omitempty"`
}

type recordingRequest struct {
	AudioBase64 string `json:"audio_base64"`
}

type createWaveRequest struct {
	DurationDays int        `json:"duration_days"`
	StartDate    *time.Time `json:"start_date,omitempty"`
}

type updateWaveRequest struct {
	DurationDays *int       `json:"duration_days,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	IsActive     *bool      `json:"is_active,omitempty"`
}

type categoryResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

type sessionResponse struct {
	ID                      string                 `json:"id"`
	CategoryID              string                 `json:"category_id"`
	WheelFocusID            string                 `json:"wheel_focus_id,omitempty"`
	Prompt                  string                 `json:"prompt"`
	RawBeliefText           string                 `json:"raw_belief_text,omitempty"`
	TranscriptionText       string                 `json:"transcription_text,omitempty"`
	LimitingBelief          string                 `json:"limiting_belief,omitempty"`
	GeneratedAffirmation    string                 `json:"generated_affirmation,omitempty"`
	ApprovedAffirmation     string                 `json:"approved_affirmation,omitempty"`
	AIAffirmationAudioURL   string                 `json:"ai_affirmation_audio_url,omitempty"`
	UserAffirmationAudioURL string                 `json:"user_affirmation_audio_url,omitempty"`
	PlaybackCount           int                    `json:"playback_count"`
	LastPlayedAt            *time.Time             `json:"last_played_at,omitempty"`
	BeliefRerecordCount     int                    `json:"belief_rerecord_count"`
	BeliefRerecordedAt      *time.Time             `json:"belief_rerecorded_at,omitempty"`
	Status                  string                 `json:"status"`
	CompletedAt             *time.Time             `json:"completed_at,omitempty"`
	CreatedAt               time.Time              `json:"created_at"`
	UpdatedAt               time.Time              `json:"updated_at"`
	Affirmations            []affirmationResponse  `json:"affirmations,omitempty"`
	Waves                   []waveResponse         `json:"waves,omitempty"`
}

type affirmationResponse struct {
	ID                 string    `json:"id"`
	AffirmationText    string    `json:"affirmation_text"`
	AudioURL           string    `json:"audio_url,omitempty"`
	IsSelected         bool      `json:"is_selected"`
	Order              int       `json:"order"`
	TTSVoicePreference string    `json:"tts_voice_preference,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type waveResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	DurationDays int       `json:"duration_days"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSessionResponse(v *reflectionservice.SessionView) sessionResponse {
	out := toSessionOnly(v.Session)
	for _, a := range v.Affirmations {
		out.Affirmations = append(out.Affirmations, affirmationResponse{
			ID:                 a.ID,
			AffirmationText:    a.AffirmationText,
			AudioURL:           a.AudioURL,
			IsSelected:         a.IsSelected,
			Order:              a.Order,
			TTSVoicePreference: a.TTSVoicePreference,
			CreatedAt:          a.CreatedAt,
		})
	}
	for _, w := range v.Waves {
		out.Waves = append(out.Waves, toWaveResponse(w))
	}
	return out
}

func toSessionOnly(s *reflectiondomain.Session) sessionResponse {
	return sessionResponse{
		ID:                      s.ID,
		CategoryID:              s.CategoryID,
		WheelFocusID:            s.WheelFocusID,
		Prompt:                  s.Prompt,
		RawBeliefText:           s.RawBeliefText,
		TranscriptionText:       s.TranscriptionText,
		LimitingBelief:          s.LimitingBelief,
		GeneratedAffirmation:    s.GeneratedAffirmation,
		ApprovedAffirmation:     s.ApprovedAffirmation,
		AIAffirmationAudioURL:   s.AIAffirmationAudioURL,
		UserAffirmationAudioURL: s.UserAffirmationAudioURL,
		PlaybackCount:           s.PlaybackCount,
		LastPlayedAt:            s.LastPlayedAt,
		BeliefRerecordCount:     s.BeliefRerecordCount,
		BeliefRerecordedAt:      s.BeliefRerecordedAt,
		Status:                  string(s.Status),
		CompletedAt:             s.CompletedAt,
		CreatedAt:               s.CreatedAt,
		UpdatedAt:               s.UpdatedAt,
	}
}

func toWaveResponse(w *wavedomain.Wave) waveResponse {
	return waveResponse{
		ID:           w.ID,
		SessionID:    w.SessionID,
		StartDate:    w.StartDate,
		EndDate:      w.EndDate,
		DurationDays: w.DurationDays,
		IsActive:     w.IsActive,
		CreatedAt:    w.CreatedAt,
	}
}

// mapError converts engine error kinds to HTTP errors. Unknown errors become
// 500s with a generic message; details stay in the log.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case apperr.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.IsInvalidState(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperr.IsInvalidInput(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.IsDependency(err):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("internal error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func decodeBelief(req beliefRequest) (reflectionservice.BeliefInput, error) {
	in := reflectionservice.BeliefInput{Text: req.Text}
	if req.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "audio_base64 is not valid base64")
		}
		in.Audio = audio
	}
	return in, nil
}

func (s *Server) handleListCategories(c echo.Context) error {
	categories, err := s.categories.List(c.Request().Context())
	if err != nil {
		return s.mapError(c, err)
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, cat := range categories {
		out = append(out, categoryResponse{ID: cat.ID, Name: cat.Name, Prompt: cat.Prompt})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CategoryID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category_id required")
	}
	v, err := s.engine.CreateSession(c.Request().Context(), s.userID(c), req.CategoryID, req.WheelFocusID)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResponse(v))
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.engine.ListSessions(c.Request().Context(), s.userID(c))
	if err != nil {
		return s.mapError(c, err)
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, ses := range sessions {
		out = append(out, toSessionOnly(ses))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c echo.Context) error {
	v, err := s.engine.GetSession(c.Request().Context(), s.userID(c), c.Param("id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.engine.DeleteSession(c.Request().Context(), s.userID(c), c.Param("id")); err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSubmitBelief(c echo.Context) error {
	var req beliefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := decodeBelief(req)
	if err != nil {
		return err
	}
	v, err := s.engine.SubmitBelief(c.Request().Context(), s.userID(c), c.Param("id"), in)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleReRecordBelief(c echo.Context) error {
	var req beliefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := decodeBelief(req)
	if err != nil {
		return err
	}
	v, err := s.engine.ReRecordBelief(c.Request().Context(), s.userID(c), c.Param("id"), in)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleEditBelief(c echo.Context) error {
	var req editTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := s.engine.EditBelief(c.Request().Context(), s.userID(c), c.Param("id"), req.Text)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleGenerateAffirmation(c echo.Context) error {
	var req voiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := s.engine.GenerateAffirmation(c.Request().Context(), s.userID(c), c.Param("id"), req.VoiceOverride)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleEditAffirmation(c echo.Context) error {
	var req editTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := s.engine.EditAffirmation(c.Request().Context(), s.userID(c), c.Param("id"), req.Text, req.VoiceOverride)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleSelectAffirmation(c echo.Context) error {
	v, err := s.engine.SelectAffirmation(c.Request().Context(), s.userID(c), c.Param("id"), c.Param("affirmationId"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleDeleteAffirmation(c echo.Context) error {
	v, err := s.engine.DeleteAffirmation(c.Request().Context(), s.userID(c), c.Param("id"), c.Param("affirmationId"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleRegenerateVoice(c echo.Context) error {
	var req voiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := s.engine.RegenerateVoice(c.Request().Context(), s.userID(c), c.Param("id"), req.VoiceOverride)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleRecordUserAffirmation(c echo.Context) error {
	var req recordingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AudioBase64 == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "audio_base64 required")
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio_base64 is not valid base64")
	}
	v, err := s.engine.RecordUserAffirmation(c.Request().Context(), s.userID(c), c.Param("id"), audio)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleTrackPlayback(c echo.Context) error {
	v, err := s.engine.TrackPlayback(c.Request().Context(), s.userID(c), c.Param("id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(v))
}

func (s *Server) handleCreateWave(c echo.Context) error {
	var req createWaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if _, err := s.scheduler.CreateWave(c.Request().Context(), s.userID(c), c.Param("id"), req.DurationDays, req.StartDate); err != nil {
		return s.mapError(c, err)
	}
	v, err := s.engine.GetSession(c.Request().Context(), s.userID(c), c.Param("id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResponse(v))
}

func (s *Server) handleUpdateWave(c echo.Context) error {
	var req updateWaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	w, err := s.scheduler.UpdateWave(c.Request().Context(), s.userID(c), c.Param("id"), waveservice.UpdateParams{
		DurationDays: req.DurationDays,
		StartDate:    req.StartDate,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, toWaveResponse(w))
}

func (s *Server) handleDeleteWave(c echo.Context) error {
	if err := s.scheduler.DeleteWave(c.Request().Context(), s.userID(c), c.Param("id")); err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
