// Package shared contains common domain types, errors, and events
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

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Conflict errors
	ErrConflict = errors.New("conflict")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "mentor", "booking"
	Op      string // Operation that failed, e.g., "Approve", "Create"
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

// Mentor domain errors
var (
	ErrMentorNotFound      = NewDomainError("mentor", "Find", ErrNotFound, "mentor not found")
	ErrMentorNotApproved   = NewDomainError("mentor", "CheckApproval", ErrValidation, "mentor is not accepting bookings")
	ErrInvalidAvailability = NewDomainError("mentor", "Validate", ErrInvalidFormat, "invalid weekly availability window")
	ErrInvalidSlotRange    = NewDomainError("mentor", "ComputeSlots", ErrValidation, "range end must not be before range start")
)

// Booking domain errors
var (
	ErrPendingRequestExists = NewDomainError("booking", "Create", ErrConflict, "a pending request with this mentor already exists")
	ErrSlotTaken            = NewDomainError("booking", "Create", ErrConflict, "slot is already booked")
	ErrSlotUnavailable      = NewDomainError("booking", "Create", ErrValidation, "slot is not offered by the mentor")
	ErrSlotInPast           = NewDomainError("booking", "Create", ErrValidation, "slot has already started")
	ErrSelfBooking          = NewDomainError("booking", "Create", ErrValidation, "cannot book own mentor profile")
)

// Session domain errors
var (
	ErrSessionNotFound   = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrNotParticipant    = NewDomainError("session", "Authorize", ErrUnauthorized, "caller is not a party to the session")
	ErrNotSessionMentor  = NewDomainError("session", "Authorize", ErrUnauthorized, "only the session mentor may do this")
	ErrNotSessionStudent = NewDomainError("session", "Authorize", ErrUnauthorized, "only the session student may do this")
	ErrInvalidTransition = NewDomainError("session", "Transition", ErrStateTransition, "transition not allowed from current status")
	ErrCannotComplete    = NewDomainError("session", "Complete", ErrStateTransition, "session cannot be completed yet")
	ErrNoShowTooEarly    = NewDomainError("session", "MarkNoShow", ErrStateTransition, "session has not ended yet")
	ErrStaleSession      = WrapError("session", "UpdateStatus", ErrStateTransition, "session status changed concurrently", ErrConcurrentModification)
)

// Rating domain errors
var (
	ErrInvalidRating = NewDomainError("rating", "Validate", ErrValueOutOfRange, "rating must be between 1 and 5")
	ErrRatingNotOpen = NewDomainError("rating", "Submit", ErrInvalidState, "only completed sessions can be rated")
	ErrAlreadyRated  = NewDomainError("rating", "Submit", ErrInvalidState, "session already has a rating")
	ErrNotRated      = NewDomainError("rating", "Change", ErrInvalidState, "session has no rating")
	ErrStaleRating   = WrapError("rating", "Update", ErrInvalidState, "rating changed concurrently", ErrConcurrentModification)
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// IsUnauthorized checks if the caller is not allowed to perform the operation.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsInvalidTransition checks if the error is an illegal status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrStateTransition)
}

// IsInvalidState checks if the error is an operation attempted in the wrong state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}
