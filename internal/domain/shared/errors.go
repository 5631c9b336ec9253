// Package shared contains common domain types, errors, events, and value objects
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
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Data quality errors
	ErrDataInconsistency = errors.New("data inconsistency")

	// Concurrency errors
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	ErrOptimisticLock      = errors.New("optimistic lock failure")
	ErrLockNotAcquired     = errors.New("lock not acquired")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "carencia", "attendance", "catalog"
	Op      string // Operation that failed, e.g., "Recompute", "Classify"
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

// Catalog domain errors
var (
	ErrCourseNotFound   = NewDomainError("catalog", "FindCourse", ErrNotFound, "course not found")
	ErrTurmaNotFound    = NewDomainError("catalog", "FindTurma", ErrNotFound, "turma not found")
	ErrStudentNotFound  = NewDomainError("catalog", "FindStudent", ErrNotFound, "student not found")
	ErrActivityNotFound = NewDomainError("catalog", "FindActivity", ErrNotFound, "activity not found")
)

// Carencia domain errors
var (
	ErrPeriodNotFound      = NewDomainError("carencia", "FindPeriod", ErrNotFound, "period not found")
	ErrRecordNotFound      = NewDomainError("carencia", "FindRecord", ErrNotFound, "carencia record not found")
	ErrInvalidMonth        = NewDomainError("carencia", "Validate", ErrValueOutOfRange, "month must be between 1 and 12")
	ErrInvalidThreshold    = NewDomainError("carencia", "Validate", ErrValueOutOfRange, "minimum percentage must be between 0 and 100")
	ErrAlreadyResolved     = NewDomainError("carencia", "Transition", ErrStateTransition, "record already resolved")
	ErrNotPending          = NewDomainError("carencia", "StartFollowUp", ErrStateTransition, "follow-up requires a pending record")
	ErrRecomputeInProgress = NewDomainError("carencia", "Recompute", ErrConcurrencyConflict, "another recompute holds the period lock")
	ErrPeriodVersionStale  = NewDomainError("carencia", "Recompute", ErrOptimisticLock, "period was modified by a concurrent recompute")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
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

// IsDataInconsistency checks if the error marks a skippable bad record.
func IsDataInconsistency(err error) bool {
	return errors.Is(err, ErrDataInconsistency)
}

// IsConcurrencyConflict checks if the error is a lost-update or lock conflict.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrLockNotAcquired)
}
