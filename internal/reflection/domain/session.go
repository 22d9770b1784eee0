package domain

import "time"

// Status is the lifecycle state of a reflection session.
type Status string

const (
	StatusPending              Status = "PENDING"
	StatusBeliefCaptured       Status = "BELIEF_CAPTURED"
	StatusAffirmationGenerated Status = "AFFIRMATION_GENERATED"
	StatusApproved             Status = "APPROVED"
	StatusCompleted            Status = "COMPLETED"
)

// Terminal reports whether the status is final. COMPLETED sessions accept no
// further operations.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// HasAffirmation reports whether the session has progressed far enough to have
// a generated affirmation (generated or approved).
func (s Status) HasAffirmation() bool {
	return s == StatusAffirmationGenerated || s == StatusApproved
}

// Session is one belief-to-affirmation workflow instance owned by a user.
type Session struct {
	ID           string
	UserID       string
	CategoryID   string
	WheelFocusID string // optional link to a wheel-of-life focus area

	Prompt            string // copied from the category at creation
	RawBeliefText     string
	TranscriptionText string // set only when the belief came from audio
	LimitingBelief    string // normalized belief from the transformation service

	// GeneratedAffirmation and AIAffirmationAudioURL mirror the currently
	// selected affirmation; the curator keeps them in sync inside the same
	// transaction that changes the selection.
	GeneratedAffirmation  string
	ApprovedAffirmation   string
	AIAffirmationAudioURL string

	// UserAffirmationAudioURL is the user's own recording, independent of
	// which affirmation is selected.
	UserAffirmationAudioURL string

	PlaybackCount int
	LastPlayedAt  *time.Time

	BeliefRerecordCount int
	BeliefRerecordedAt  *time.Time

	Status      Status
	CompletedAt *time.Time // non-nil iff Status == COMPLETED
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Affirmation is one candidate phrasing generated for a session. For a session
// with at least one affirmation, exactly one has IsSelected true.
type Affirmation struct {
	ID              string
	SessionID       string
	AffirmationText string
	AudioURL        string // empty until synthesized; synthesis may fail or be deferred
	IsSelected      bool
	Order           int // insertion sequence, zero-based per session
	// TTSVoicePreference is the voice used or intended for this affirmation.
	// Kept per row so a later change of the user's default does not
	// retroactively alter an already-voiced affirmation.
	TTSVoicePreference string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
