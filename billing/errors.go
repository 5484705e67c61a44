/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer translates these kinds to status codes; the engine itself
  only ever returns typed errors, never partial successes.

ERROR CATEGORIES:
  1. Validation errors - bad input shape or range (discounts, plans)
  2. Not-found errors  - referenced learner/course/invoice absent
  3. Conflict errors   - illegal state transitions, duplicates
  4. Persistence errors - storage-layer failures

USAGE:
  Callers classify with the helpers:

    if billing.IsNotFound(err) { ... 404 ... }
    if billing.IsConflict(err) { ... 409 ... }

SEE ALSO:
  - lifecycle.go: Produces conflict errors on illegal transitions
  - discount.go:  Produces validation errors on out-of-range discounts
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all bad-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the root of all missing-reference failures.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the root of all illegal-state failures.
	ErrConflict = errors.New("conflict")

	// ErrPersistence is the root of storage-layer failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvoiceVoided is returned when any transition is requested on a
	// voided invoice. Voided is terminal.
	ErrInvoiceVoided = errors.New("invoice already voided")

	// ErrInvoiceAlreadyPaid guards the Paid transition against double
	// revenue recognition. Re-marking a paid invoice is rejected.
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")

	// ErrConcurrentModification is returned when the revenue aggregate's
	// optimistic version check fails. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a specific invalid or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-specific validation failure.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing learner, course, invoice, or revenue record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports an illegal state transition or duplicate.
type ConflictError struct {
	Message string
	Cause   error // optional sentinel (ErrInvoiceVoided, ErrInvoiceAlreadyPaid)
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrConflict
}

// TransitionError reports an invalid invoice status transition.
type TransitionError struct {
	InvoiceID InvoiceID
	From      InvoiceStatus
	To        InvoiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid invoice transition %s -> %s (invoice %s)", e.From, e.To, e.InvoiceID)
}

func (e *TransitionError) Unwrap() error {
	switch {
	case e.From == InvoiceVoided:
		return ErrInvoiceVoided
	case e.From == InvoicePaid && e.To == InvoicePaid:
		return ErrInvoiceAlreadyPaid
	default:
		return ErrConflict
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error is an illegal-state failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvoiceVoided) ||
		errors.Is(err, ErrInvoiceAlreadyPaid)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }
