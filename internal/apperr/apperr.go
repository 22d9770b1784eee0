// Package apperr defines the error kinds surfaced by the lifecycle engine.
// Services return these; the transport layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing resource, or one not owned by the caller.
// Ownership failures deliberately read as "not found" to avoid existence leakage.
type NotFoundError struct {
	Resource string // e.g. "session", "wave", "affirmation"
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NotFound returns a NotFoundError for the named resource.
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// InvalidStateError reports an operation attempted from a status or invariant
// that forbids it. The message names the required state.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string {
	return e.Msg
}

// InvalidState returns an InvalidStateError with a formatted message.
func InvalidState(format string, args ...any) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidInputError reports malformed or missing caller input.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string {
	return e.Msg
}

// InvalidInput returns an InvalidInputError with a formatted message.
func InvalidInput(format string, args ...any) error {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}

// DependencyError reports a failed call to an external collaborator
// (transcription, transformation, synthesis, storage).
type DependencyError struct {
	Op  string // e.g. "transcribe"
	Err error
}

func (e *DependencyError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Dependency wraps err as a DependencyError for the named collaborator call.
func Dependency(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// IsDependency reports whether err is a DependencyError.
func IsDependency(err error) bool {
	var e *DependencyError
	return errors.As(err, &e)
}
