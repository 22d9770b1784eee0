package domain

import (
	"testing"
	"time"
)

func TestValidateDuration(t *testing.T) {
	for _, d := range PermittedDurations {
		if err := ValidateDuration(d); err != nil {
			t.Errorf("ValidateDuration(%d) = %v, want nil", d, err)
		}
	}
	for _, d := range []int{0, -7, 1, 8, 365} {
		if err := ValidateDuration(d); err == nil {
			t.Errorf("ValidateDuration(%d) should fail", d)
		}
	}
}

func TestRecompute(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w := &Wave{StartDate: start, DurationDays: 7}
	w.Recompute()
	if want := start.AddDate(0, 0, 7); !w.EndDate.Equal(want) {
		t.Errorf("EndDate = %v, want %v", w.EndDate, want)
	}

	w.DurationDays = 30
	w.Recompute()
	if want := start.AddDate(0, 0, 30); !w.EndDate.Equal(want) {
		t.Errorf("EndDate after duration change = %v, want %v", w.EndDate, want)
	}
}

func TestExpired(t *testing.T) {
	end := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	w := &Wave{EndDate: end}
	if w.Expired(end.Add(-time.Second)) {
		t.Error("wave should not be expired before end date")
	}
	if !w.Expired(end) {
		t.Error("wave should be expired exactly at end date")
	}
	if !w.Expired(end.Add(time.Hour)) {
		t.Error("wave should be expired after end date")
	}
}
