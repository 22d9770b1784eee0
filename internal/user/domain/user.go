package domain

import (
	"errors"
	"time"
)

// User is the local user record. Auth lives elsewhere; the engine only needs
// the mapping from an external principal to an owner id, the saved synthesis
// voice, and the lifetime completed-session counter the reconciler bumps.
type User struct {
	ID                    string
	PrincipalID           string // external identity provider subject; unique
	DefaultTTSVoice       string // optional; empty means use the service default
	CompletedSessionCount int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.PrincipalID == "" {
		return errors.New("principal id is required")
	}
	return nil
}
