/*
sync.go - The auto-sync pass: whole-roster reconciliation and repair

PURPOSE:
  For every active enrollment, materialize a payment record for each owed
  month that lacks one, and promote stale pending records to overdue.
  The pass is the only writer that creates records automatically and the
  only path that performs the pending -> overdue transition.

RULES:
  - Missing month == current month -> create as pending
  - Missing month in the past      -> create as overdue
  - Existing pending, month past   -> promote to overdue
  - paid is never touched, whatever its month

ATOMICITY:
  All staged creates and promotions across the whole roster, plus the
  sync-marker update, go through one Apply call. A failed write leaves
  the marker unchanged, so the next trigger retries the full pass
  (at-least-once for the pass, exactly-once per (enrollment, month)
  thanks to the existence check).

TRIGGER POLICY:
  At most one automatic run per calendar day, gated by the persisted
  SyncMarker. force bypasses the gate. Re-running immediately after a
  successful run stages nothing and reports {0, 0}.

RACES:
  The payment set is re-read per enrollment immediately before staging.
  Two racing sync passes stage structurally identical creates; a racing
  manual add for the same month is the documented weak point (see
  store.go).
*/
package dues

import (
	"context"

	"github.com/google/uuid"
)

const markerLayout = "2006-01-02"

// RunSync executes the whole-roster pass. When force is false the pass is
// skipped if the marker already carries today's date.
func (en *Engine) RunSync(ctx context.Context, force bool) (SyncReport, error) {
	now := en.Clock.Now()
	today := now.Format(markerLayout)

	if !force {
		marker, err := en.Store.SyncMarker(ctx)
		if err != nil {
			return SyncReport{}, persistErr("read sync marker", err)
		}
		if marker.Date == today {
			return SyncReport{Skipped: true, RunDate: marker.Date}, nil
		}
	}

	enrollments, err := en.Store.ActiveEnrollments(ctx)
	if err != nil {
		return SyncReport{}, persistErr("list enrollments", err)
	}

	current := CurrentMonth(en.Clock)
	var batch []Write
	report := SyncReport{RunDate: today}

	for _, enrollment := range enrollments {
		// Re-read the authoritative set right before staging. A record
		// created since the roster listing must not be created twice.
		payments, err := en.Store.Payments(ctx, enrollment.ID)
		if err != nil {
			return SyncReport{}, persistErr("load payments", err)
		}
		existing := indexByMonth(payments)

		for _, ob := range Obligations(enrollment, current) {
			if _, ok := existing[ob.Month]; ok {
				continue
			}
			batch = append(batch, PutPayment{
				EnrollmentID: enrollment.ID,
				Record: PaymentRecord{
					ID:          uuid.NewString(),
					Month:       ob.Month,
					Amount:      ob.ExpectedAmount,
					Status:      MissingStatus(ob.Month, current),
					AutoCreated: true,
					CreatedAt:   now,
				},
			})
			report.Created++
		}

		for _, p := range payments {
			if p.Status == StatusPending && p.Month.Before(current) {
				batch = append(batch, UpdateStatus{
					EnrollmentID: enrollment.ID,
					PaymentID:    p.ID,
					Status:       StatusOverdue,
				})
				report.Promoted++
			}
		}
	}

	// The marker rides in the same atomic batch: a failed write leaves it
	// unchanged and the next trigger retries the full pass. The counts
	// travel with it so the status surface can show the last run.
	batch = append(batch, SetSyncMarker{Date: today, Created: report.Created, Promoted: report.Promoted})
	if err := en.Store.Apply(ctx, batch); err != nil {
		return SyncReport{}, persistErr("apply sync batch", err)
	}
	return report, nil
}
