package domain

import (
	"fmt"
	"time"
)

// PermittedDurations are the allowed wave lengths in days.
var PermittedDurations = []int{7, 14, 21, 30}

// Wave is a time-boxed listening window attached to a session. At most one
// wave per session is active at any instant.
type Wave struct {
	ID           string
	SessionID    string
	StartDate    time.Time
	EndDate      time.Time // always StartDate + DurationDays; never set independently
	DurationDays int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateDuration checks days against the permitted set.
func ValidateDuration(days int) error {
	for _, d := range PermittedDurations {
		if days == d {
			return nil
		}
	}
	return fmt.Errorf("duration must be one of %v days, got %d", PermittedDurations, days)
}

// EndDateFor computes the end date for a window starting at start and lasting days.
func EndDateFor(start time.Time, days int) time.Time {
	return start.AddDate(0, 0, days)
}

// Recompute sets EndDate from the wave's current StartDate and DurationDays.
func (w *Wave) Recompute() {
	w.EndDate = EndDateFor(w.StartDate, w.DurationDays)
}

// Expired reports whether the wave's window has passed at the given instant.
func (w *Wave) Expired(now time.Time) bool {
	return !w.EndDate.After(now)
}
