/*
advance.go - Bulk pre-payment creation, all-or-nothing

PURPOSE:
  Record several future (or past) months as settled in one operation:
  count consecutive months from a start month, each created as paid with
  the enrollment's current fee and the submission time as payment date.

ALL-OR-NOTHING:
  Every target month is checked against the authoritative payment set
  first. If ANY month already has a record the whole request is rejected
  with a DuplicateMonthError naming every conflicting month - no partial
  batch is ever written.
*/
package dues

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateAdvanceBatch creates count consecutive paid records starting at
// startMonth. count must be in [1, MaxAdvanceMonths]. Returns the created
// records ascending by month.
func (en *Engine) CreateAdvanceBatch(ctx context.Context, enrollmentID string, startMonth MonthKey, count int) ([]PaymentRecord, error) {
	if count < 1 || count > MaxAdvanceMonths {
		return nil, fmt.Errorf("%w: %d (want 1-%d)", ErrCountOutOfRange, count, MaxAdvanceMonths)
	}
	if _, err := ParseMonthKey(string(startMonth)); err != nil {
		return nil, err
	}

	enrollment, err := en.Store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	payments, err := en.Store.Payments(ctx, enrollmentID)
	if err != nil {
		return nil, persistErr("load payments", err)
	}
	existing := indexByMonth(payments)

	targets := make([]MonthKey, count)
	var conflicts []MonthKey
	for i := 0; i < count; i++ {
		targets[i] = startMonth.AddMonths(i)
		if _, ok := existing[targets[i]]; ok {
			conflicts = append(conflicts, targets[i])
		}
	}
	if len(conflicts) > 0 {
		return nil, &DuplicateMonthError{EnrollmentID: enrollmentID, Months: conflicts}
	}

	now := en.Clock.Now()
	batch := make([]Write, 0, count)
	records := make([]PaymentRecord, 0, count)
	for _, m := range targets {
		rec := PaymentRecord{
			ID:          uuid.NewString(),
			Month:       m,
			Amount:      enrollment.Fee,
			Status:      StatusPaid,
			PaymentDate: &now,
			CreatedAt:   now,
		}
		batch = append(batch, PutPayment{EnrollmentID: enrollmentID, Record: rec})
		records = append(records, rec)
	}

	if err := en.Store.Apply(ctx, batch); err != nil {
		return nil, persistErr("apply advance batch", err)
	}
	return records, nil
}
