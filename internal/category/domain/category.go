package domain

import (
	"errors"
	"time"
)

// Category is a topic domain for reflection sessions (e.g. money, health).
// Each carries the prompt shown to the user when a session is created; the
// session copies it at creation time so later prompt edits do not rewrite
// history.
type Category struct {
	ID        string
	Name      string
	Prompt    string
	CreatedAt time.Time
}

// Validate validates the category for persistence.
func (c *Category) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Prompt == "" {
		return errors.New("prompt is required")
	}
	return nil
}
