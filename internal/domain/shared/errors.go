// Package shared contains common domain types, errors and events used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Domain errors carry one of these as Kind so callers can
// classify them with errors.Is without knowing the concrete error.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	ErrForbidden = errors.New("forbidden")

	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "progress", "streak", "league", "mission"
	Op      string // operation that failed, e.g. "Credit", "Claim"
	Kind    error  // base error for errors.Is classification
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the wrapped cause.
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

// Progression error taxonomy. Each value is a sentinel; detailed variants are
// built with WrapError(..., ErrX, ...) so errors.Is(err, ErrX) keeps working.
var (
	ErrInvalidAmount           = NewDomainError("progress", "Credit", ErrInvalidInput, "xp amount must be a finite non-negative number")
	ErrMissingIdentity         = NewDomainError("profile", "Identify", ErrInvalidInput, "email or session id is required")
	ErrStorageUnavailable      = NewDomainError("profile", "Store", ErrServiceUnavailable, "profile storage is unavailable")
	ErrSyncFailure             = NewDomainError("sync", "Push", ErrExternalService, "secondary sync failed")
	ErrConcurrentClaimConflict = NewDomainError("streak", "Claim", ErrConcurrentModification, "another claim for this identity is in progress")
)

// Profile errors.
var (
	ErrProfileNotFound = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrInvalidEmail    = NewDomainError("profile", "Identify", ErrInvalidInput, "email address is malformed")
)

// League errors.
var (
	ErrMemberNotFound = NewDomainError("league", "Rank", ErrNotFound, "member is not part of the cohort")
	ErrInvalidTier    = NewDomainError("league", "ParseTier", ErrInvalidInput, "unknown league tier")
	ErrInvalidSlots   = NewDomainError("league", "Validate", ErrValueOutOfRange, "promotion and relegation slots must be non-negative")
	ErrInvalidSeason  = NewDomainError("league", "ParseSeason", ErrInvalidInput, "malformed season id")
)

// Mission errors.
var (
	ErrInvalidTransition  = NewDomainError("mission", "Transition", ErrStateTransition, "transition not allowed from current state")
	ErrMissionNotFound    = NewDomainError("mission", "Find", ErrNotFound, "mission not found")
	ErrMissionLocked      = NewDomainError("mission", "Start", ErrForbidden, "mission prerequisites are not completed")
	ErrRunNotFound        = NewDomainError("mission", "FindRun", ErrNotFound, "mission run not found or expired")
	ErrOptionNotFound     = NewDomainError("mission", "Select", ErrInvalidInput, "investment option does not exist")
	ErrNoOptionSelected   = NewDomainError("mission", "Confirm", ErrInvalidState, "an investment option must be selected first")
	ErrThesisTooShort     = NewDomainError("mission", "SubmitThesis", ErrInvalidInput, "thesis must be at least 10 characters")
	ErrQuestionNotFound   = NewDomainError("mission", "Answer", ErrInvalidInput, "quiz question does not exist")
	ErrAlreadyAnswered    = NewDomainError("mission", "Answer", ErrAlreadyExists, "quiz question already answered")
	ErrRunNotOwned        = NewDomainError("mission", "FindRun", ErrForbidden, "mission run belongs to another identity")
	ErrRunAlreadyCredited = NewDomainError("mission", "Complete", ErrAlreadyExists, "mission run was already credited")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
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
		errors.Is(err, ErrConcurrentModification)
}
