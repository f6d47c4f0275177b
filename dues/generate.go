/*
generate.go - Obligation generation and the shared month classification rule

PURPOSE:
  Derives the set of months an enrollment owes: one Obligation per month
  from the enrollment's start month through "as of", inclusive. The
  sequence is finite, ascending, and deterministic - two callers
  generating for the same enrollment and the same asOf produce
  structurally identical obligations, which is what lets racing writers
  degrade to redundant writes instead of corrupted state.

FEE RULE:
  ExpectedAmount is always the enrollment's CURRENT fee. Historical fee
  values are not reconstructed; only already-persisted records retain the
  amount in force when they were created.

SEE ALSO:
  - reconcile.go: consumes obligations on the read path
  - sync.go: consumes obligations on the write path
*/
package dues

// Obligations returns one obligation per month from the enrollment's start
// month through asOf, inclusive, ascending. Empty when the start month is
// after asOf.
func Obligations(e Enrollment, asOf MonthKey) []Obligation {
	var out []Obligation
	for m := e.StartMonth(); !m.After(asOf); m = m.Next() {
		out = append(out, Obligation{
			EnrollmentID:   e.ID,
			Month:          m,
			ExpectedAmount: e.Fee,
		})
	}
	return out
}

// MissingStatus classifies a month with no payment record against the
// current month: overdue when strictly in the past, pending for the
// current month. The reconciler's virtual statuses and the sync pass's
// persisted statuses both go through this one rule, so display and
// storage can never disagree on the boundary.
func MissingStatus(month, current MonthKey) Status {
	if month.Before(current) {
		return StatusOverdue
	}
	return StatusPending
}
