// Package notification emits session-completion events for the out-of-process
// notification dispatcher. Callers use it best-effort: log and ignore errors.
package notification

import "context"

// CompletionEvent is published once per session the reconciler completes.
type CompletionEvent struct {
	UserID                 string `json:"user_id"`
	SessionID              string `json:"session_id"`
	TotalCompletedSessions int    `json:"total_completed_sessions"`
}

// Producer emits completion events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single completion event. Implementations may block briefly.
	// Returns an error only on write failure; callers typically log and ignore.
	Emit(ctx context.Context, event *CompletionEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
