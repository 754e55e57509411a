// Package shared contains common domain types, errors and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")

	// Identity resolution errors
	ErrUnresolvableIdentity = errors.New("entry has neither user id nor resolvable nickname")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "tournament", "player", "pool"
	Op      string // Operation that failed, e.g., "Register", "Propagate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Tournament domain errors
var (
	ErrParticipantNotFound = NewDomainError("tournament", "Find", ErrNotFound, "participant not found")
	ErrAlreadyParticipates = NewDomainError("tournament", "Register", ErrAlreadyExists, "user already participates in the open tournament")
	ErrInvalidOsuUserID    = NewDomainError("tournament", "Validate", ErrInvalidID, "invalid osu! user ID")
	ErrSnapshotNotFound    = NewDomainError("tournament", "FindSnapshot", ErrNotFound, "history snapshot not found")
	ErrSnapshotOutOfOrder  = NewDomainError("tournament", "Reconcile", ErrInvalidState, "snapshot processed out of chronological order")
	ErrEmptyTournament     = NewDomainError("tournament", "Close", ErrInvalidState, "no participants to snapshot")
)

// Player domain errors
var (
	ErrPlayerNotFound = NewDomainError("player", "Find", ErrNotFound, "player profile not found")
	ErrUnknownTrack   = NewDomainError("player", "Validate", ErrInvalidInput, "unknown competition track")
)

// Pool domain errors
var (
	ErrPoolMapNotFound = NewDomainError("pool", "Find", ErrNotFound, "pool map not found")
)

// Error kinds used by jobs and the reconciler to decide whether a failure
// aborts the run or is skipped for a single user/entry.
var (
	// ErrExternalFetch marks a failed fetch from the rating source for one
	// user. Recovered locally: skip the user, log, continue the batch.
	ErrExternalFetch = NewDomainError("external", "Fetch", ErrExternalService, "rating source fetch failed")

	// ErrPersistence marks a failed store read/write. Surfaced to the caller
	// as a failed run; already-committed writes stay (no cross-table rollback).
	ErrPersistence = NewDomainError("persistence", "Write", ErrExternalService, "store operation failed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
