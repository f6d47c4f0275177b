/*
errors.go - Centralized error types for the dues engine

PURPOSE:
  All engine error types in one place. Callers classify with errors.Is
  and the helpers at the bottom; the API layer maps classes to HTTP codes.

ERROR CATEGORIES:
  1. Validation errors - duplicate months, bad counts, bad input.
     Rejected before any write is attempted; no state changes.
  2. Not-found errors - referenced enrollment or record is missing.
  3. Persistence errors - the store's read or write failed. Propagated
     wrapped in ErrPersistence; for the sync pass the marker is left
     unchanged so the next trigger retries the full pass.

USAGE:
  if errors.Is(err, dues.ErrDuplicateMonth) {
      var dup *dues.DuplicateMonthError
      errors.As(err, &dup) // dup.Months names every conflict
  }
*/
package dues

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateMonth is returned when a create or edit would produce a
	// second PaymentRecord for the same (enrollment, month).
	ErrDuplicateMonth = errors.New("payment already recorded for month")

	// ErrInvalidMonth is returned for a month key not in "YYYY-MM" form.
	ErrInvalidMonth = errors.New("invalid month key")

	// ErrInvalidStatus is returned for a status outside paid/pending/overdue.
	ErrInvalidStatus = errors.New("invalid payment status")

	// ErrCountOutOfRange is returned when an advance batch count is
	// outside [1, MaxAdvanceMonths].
	ErrCountOutOfRange = errors.New("advance month count out of range")

	// ErrEnrollmentNotFound is returned when a referenced enrollment does
	// not exist at the time of the operation.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrPaymentNotFound is returned when a referenced payment record does
	// not exist at the time of the operation.
	ErrPaymentNotFound = errors.New("payment record not found")

	// ErrPersistence wraps store read/write failures.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateMonthError names every month that already has a PaymentRecord.
// Batch rejections list all conflicts, not just the first, so a caller can
// resolve them in one round trip.
type DuplicateMonthError struct {
	EnrollmentID string
	Months       []MonthKey
}

func (e *DuplicateMonthError) Error() string {
	labels := make([]string, len(e.Months))
	for i, m := range e.Months {
		labels[i] = string(m)
	}
	return fmt.Sprintf("payment already recorded for enrollment %s: %s",
		e.EnrollmentID, strings.Join(labels, ", "))
}

func (e *DuplicateMonthError) Unwrap() error { return ErrDuplicateMonth }

// persistErr wraps a store failure with the ErrPersistence class.
func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateMonth) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrCountOutOfRange)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
// Persistence failures abort whole passes without partial effects, so a
// full retry is always safe.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}
