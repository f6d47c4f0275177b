/*
manual.go - The manual CRUD gate

PURPOSE:
  Single-record create, edit, and delete, enforcing the same
  (enrollment, month) uniqueness invariant as the sync pass and the
  advance batch creator, against the same authoritative read.

STATUS MACHINE (manual side):
  A record's initial status is whatever the caller chooses. Entering paid
  sets the payment date (caller-supplied or the current time); leaving
  paid clears it. The automatic pending -> overdue transition lives in
  sync.go only.

AMOUNT EDITS:
  Editing the amount of an already-paid record is permitted. Fee history
  is preserved only through the amount captured at creation time; the
  gate does not second-guess corrections.

DELETION:
  Deleting does not recreate. If the month is still owed, the next sync
  pass treats it as a fresh missing obligation and recreates it with a
  fresh, non-paid status.
*/
package dues

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddPaymentInput describes a manual single-record create.
type AddPaymentInput struct {
	Month       MonthKey
	Amount      decimal.Decimal
	Status      Status
	PaymentDate *time.Time // optional; defaulted to now when Status is paid
}

// EditPaymentInput describes a partial update; nil fields are unchanged.
type EditPaymentInput struct {
	Month       *MonthKey
	Amount      *decimal.Decimal
	Status      *Status
	PaymentDate *time.Time
}

// AddPayment creates one record. Rejects with a DuplicateMonthError if a
// record already exists for that (enrollment, month).
func (en *Engine) AddPayment(ctx context.Context, enrollmentID string, in AddPaymentInput) (PaymentRecord, error) {
	if _, err := ParseMonthKey(string(in.Month)); err != nil {
		return PaymentRecord{}, err
	}
	if !ValidStatus(in.Status) {
		return PaymentRecord{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	if _, err := en.Store.Enrollment(ctx, enrollmentID); err != nil {
		return PaymentRecord{}, err
	}

	payments, err := en.Store.Payments(ctx, enrollmentID)
	if err != nil {
		return PaymentRecord{}, persistErr("load payments", err)
	}
	if _, ok := indexByMonth(payments)[in.Month]; ok {
		return PaymentRecord{}, &DuplicateMonthError{EnrollmentID: enrollmentID, Months: []MonthKey{in.Month}}
	}

	now := en.Clock.Now()
	rec := PaymentRecord{
		ID:        uuid.NewString(),
		Month:     in.Month,
		Amount:    in.Amount,
		Status:    in.Status,
		CreatedAt: now,
	}
	rec.PaymentDate = paymentDateFor(in.Status, in.PaymentDate, now)

	if err := en.Store.Apply(ctx, []Write{PutPayment{EnrollmentID: enrollmentID, Record: rec}}); err != nil {
		return PaymentRecord{}, persistErr("apply payment", err)
	}
	return rec, nil
}

// EditPayment applies a partial update to one record. A month change
// re-validates uniqueness against the new month, excluding the record
// being edited.
func (en *Engine) EditPayment(ctx context.Context, enrollmentID, paymentID string, in EditPaymentInput) (PaymentRecord, error) {
	rec, err := en.Store.Payment(ctx, enrollmentID, paymentID)
	if err != nil {
		return PaymentRecord{}, err
	}

	if in.Month != nil && *in.Month != rec.Month {
		if _, err := ParseMonthKey(string(*in.Month)); err != nil {
			return PaymentRecord{}, err
		}
		payments, err := en.Store.Payments(ctx, enrollmentID)
		if err != nil {
			return PaymentRecord{}, persistErr("load payments", err)
		}
		for _, p := range payments {
			if p.Month == *in.Month && p.ID != rec.ID {
				return PaymentRecord{}, &DuplicateMonthError{EnrollmentID: enrollmentID, Months: []MonthKey{*in.Month}}
			}
		}
		rec.Month = *in.Month
	}

	if in.Amount != nil {
		rec.Amount = *in.Amount
	}

	if in.Status != nil && *in.Status != rec.Status {
		if !ValidStatus(*in.Status) {
			return PaymentRecord{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		rec.Status = *in.Status
		rec.PaymentDate = paymentDateFor(rec.Status, in.PaymentDate, en.Clock.Now())
	} else if in.PaymentDate != nil && rec.Status == StatusPaid {
		rec.PaymentDate = in.PaymentDate
	}

	if err := en.Store.Apply(ctx, []Write{PutPayment{EnrollmentID: enrollmentID, Record: rec}}); err != nil {
		return PaymentRecord{}, persistErr("apply payment", err)
	}
	return rec, nil
}

// DeletePayment removes one record without recreating it.
func (en *Engine) DeletePayment(ctx context.Context, enrollmentID, paymentID string) error {
	return en.Store.DeletePayment(ctx, enrollmentID, paymentID)
}

// paymentDateFor keeps the payment date consistent with the status: paid
// records carry a date, non-paid records never do.
func paymentDateFor(status Status, supplied *time.Time, now time.Time) *time.Time {
	if status != StatusPaid {
		return nil
	}
	if supplied != nil {
		return supplied
	}
	return &now
}
