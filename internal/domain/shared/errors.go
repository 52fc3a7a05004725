// Package shared contains error types used across the domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base errors that can be used for error checking with errors.Is().
var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidState    = errors.New("invalid state")
	ErrExternalService = errors.New("external service error")
	ErrTimeout         = errors.New("operation timeout")
)

// Table errors.
var (
	// ErrStaleLoad marks a load result that arrived after a newer load started.
	// It is informational: callers drop the result and move on.
	ErrStaleLoad = errors.New("stale load discarded")

	// ErrLoadPending is returned by operations that need a settled dataset.
	ErrLoadPending = errors.New("dataset is still loading")

	// ErrNoSelection gates bulk actions on an empty selection.
	ErrNoSelection = errors.New("no rows selected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "table", "session", "datasource"
	Op      string
	Kind    error // base error for errors.Is()
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching on Kind as well as the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Session and view errors.
var (
	ErrSessionNotFound = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrSessionClosed   = NewDomainError("session", "Dispatch", ErrInvalidState, "session is closed")
	ErrViewNotFound    = NewDomainError("view", "Find", ErrNotFound, "view not found")
	ErrUnknownAction   = NewDomainError("session", "Bulk", ErrInvalidInput, "unknown bulk action")
)

// FetchError is produced when a data source fails to deliver a dataset.
type FetchError struct {
	Source     string
	Generation uint64
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (generation %d): %v", e.Source, e.Generation, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExternalService) match every fetch failure.
func (e *FetchError) Is(target error) bool {
	return target == ErrExternalService
}

// InvalidPageError records a requested page outside [1, TotalPages].
// It is recovered by clamping and only ever logged.
type InvalidPageError struct {
	Requested  int
	TotalPages int
	Clamped    int
}

func (e *InvalidPageError) Error() string {
	return fmt.Sprintf("page %d outside [1, %d], clamped to %d", e.Requested, e.TotalPages, e.Clamped)
}

func (e *InvalidPageError) Is(target error) bool {
	return target == ErrValueOutOfRange
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrValueOutOfRange)
}

// IsFetchError reports whether err carries a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
