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
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Infrastructure errors
	ErrInternal           = errors.New("internal error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "loan", "book", "rentalrule"
	Op      string // Operation that failed, e.g., "Checkout", "Return"
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

// Book domain errors
var (
	ErrBookNotFound      = NewDomainError("book", "Find", ErrNotFound, "book not found")
	ErrBookAlreadyExists = NewDomainError("book", "Create", ErrAlreadyExists, "book with this ISBN already exists")
	ErrBookUnavailable   = NewDomainError("book", "Checkout", ErrConflict, "book is not available")
	ErrInvalidCopyCount  = NewDomainError("book", "Validate", ErrValueOutOfRange, "available copies must be between 0 and total copies")
	ErrInvalidBookStatus = NewDomainError("book", "UpdateStatus", ErrStateTransition, "invalid book status transition")
)

// Member domain errors
var (
	ErrMemberNotFound  = NewDomainError("member", "Find", ErrNotFound, "member not found")
	ErrMemberExists    = NewDomainError("member", "Create", ErrAlreadyExists, "member already exists")
	ErrMemberSuspended = NewDomainError("member", "CheckStatus", ErrForbidden, "member is suspended")
)

// Rental rule domain errors
var (
	ErrRuleNotFound = NewDomainError("rentalrule", "Find", ErrNotFound, "rental rule not found")
	ErrInvalidRule  = NewDomainError("rentalrule", "Validate", ErrInvalidInput, "invalid rental rule")
)

// Loan domain errors
var (
	ErrLoanNotFound      = NewDomainError("loan", "Find", ErrNotFound, "loan not found")
	ErrLoanNotActive     = NewDomainError("loan", "CheckStatus", ErrConflict, "loan is not active")
	ErrLoanLimitReached  = NewDomainError("loan", "Checkout", ErrConflict, "member has reached the loan limit")
	ErrRenewalNotAllowed = NewDomainError("loan", "Renew", ErrConflict, "renewal is not allowed by the rental rule")
	ErrInvalidDueDate    = NewDomainError("loan", "Validate", ErrInvalidInput, "due date must not be before rental date")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict error (unavailable book,
// loan limit reached, loan not active, renewal disallowed).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
