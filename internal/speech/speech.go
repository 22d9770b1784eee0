// Package speech holds the engine's external collaborators for audio and
// language work: transcription, belief transformation, speech synthesis, and
// audio asset storage. All are treated as black boxes that may fail; callers
// decide whether a failure is surfaced or degraded.
package speech

import "context"

// Transformation is the belief-transformation result: the normalized limiting
// belief and the affirmation phrasing derived from it.
type Transformation struct {
	LimitingBelief  string `json:"limiting_belief"`
	AffirmationText string `json:"affirmation_text"`
}

// Transcriber converts spoken audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Transformer converts raw belief text into a Transformation.
type Transformer interface {
	Transform(ctx context.Context, beliefText string) (*Transformation, error)
}

// Synthesizer renders affirmation text to speech with the given voice and
// returns the URL of the stored audio asset.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (string, error)
}

// AssetStore persists raw audio bytes and returns a URL for them.
type AssetStore interface {
	Store(ctx context.Context, audio []byte) (string, error)
}
