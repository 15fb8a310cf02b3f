// Package errors provides centralized error definitions and error handling
// utilities for sage. It defines sentinel errors for the session and engine
// subsystems, semantic error types, and classification helpers used by the
// command layer to decide what is safe to show the user.
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSessionNotFound) { ... }
//
//	var nfe *errors.NotFoundError
//	if errors.As(err, &nfe) { ... }
//
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionCorrupted indicates that session data could not be parsed.
	ErrSessionCorrupted = New("session data corrupted")
)

// Engine-related sentinel errors
var (
	// ErrEngineFailed indicates that the AI engine reported an error result
	// or terminated abnormally.
	ErrEngineFailed = New("engine exchange failed")
	// ErrNoPriorFailure indicates a retry was requested with no remembered
	// failed question.
	ErrNoPriorFailure = New("no failed question to retry")
)

// Configuration-related sentinel errors
var (
	// ErrUnknownPreset indicates the requested prompt preset is not configured.
	ErrUnknownPreset = New("unknown prompt preset")
	// ErrInvalidToolPattern indicates an allowed-tool pattern failed to compile.
	ErrInvalidToolPattern = New("invalid tool pattern")
)

// -----------------------------------------------------------------------------
// Semantic Error Types
// -----------------------------------------------------------------------------

// NotFoundError indicates that a named resource does not exist.
type NotFoundError struct {
	Resource string // e.g. "session", "preset"
	Name     string
}

// NewNotFoundError creates a NotFoundError for the given resource and name.
func NewNotFoundError(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

// Is reports whether this error matches the session-not-found sentinel, so
// callers can use errors.Is without caring which constructor produced it.
func (e *NotFoundError) Is(target error) bool {
	return e.Resource == "session" && target == ErrSessionNotFound
}

// StorageError indicates a read/write/delete failure for reasons other than
// absence (permissions, disk). It is never produced for missing records.
type StorageError struct {
	Op   string // "save", "delete", "list"
	Name string
	Err  error
}

// NewStorageError wraps an underlying storage failure with operation context.
func NewStorageError(op, name string, err error) *StorageError {
	return &StorageError{Op: op, Name: name, Err: err}
}

func (e *StorageError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("session storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session storage %s failed for %q: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsNotFound reports whether err indicates a missing resource of any kind.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return Is(err, ErrSessionNotFound) || As(err, &nfe)
}

// IsUserFacing reports whether err is safe to present verbatim to the user.
// User-facing errors describe conditions the user caused or can fix; storage
// failures are summarized by the command layer instead.
func IsUserFacing(err error) bool {
	if IsNotFound(err) {
		return true
	}
	return Is(err, ErrNoPriorFailure) ||
		Is(err, ErrUnknownPreset) ||
		Is(err, ErrInvalidToolPattern)
}
