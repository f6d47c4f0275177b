/*
reconcile.go - Merge obligations with payment records into a display ledger

PURPOSE:
  The read path. For each obligation, look up the payment record for that
  month: found records contribute their own status and amount; missing
  months get a virtual status from the shared classification rule in
  generate.go. Months after asOf are not obligations at all - callers
  wanting a forward preview request it separately and those entries carry
  the distinct not-yet-due tag, never one of the three real statuses.

OUTPUT:
  Ascending by month. Every entry is tagged auto-derived (no backing
  record) or record-backed. Nothing here writes; materializing missing
  records is the sync pass's job.
*/
package dues

import "github.com/shopspring/decimal"

// Reconcile builds the display ledger for one enrollment from a snapshot
// of its payment records. Pure: no store access, no clock.
func Reconcile(e Enrollment, payments []PaymentRecord, asOf MonthKey) []LedgerEntry {
	byMonth := indexByMonth(payments)

	obligations := Obligations(e, asOf)
	entries := make([]LedgerEntry, 0, len(obligations))
	for _, ob := range obligations {
		entry := LedgerEntry{
			Month:          ob.Month,
			Label:          Format(ob.Month, LocaleFR),
			ExpectedAmount: ob.ExpectedAmount,
		}
		if rec, ok := byMonth[ob.Month]; ok {
			r := rec
			entry.Status = r.Status
			entry.ExpectedAmount = r.Amount
			entry.Record = &r
		} else {
			entry.Status = MissingStatus(ob.Month, asOf)
			entry.AutoDerived = true
		}
		entries = append(entries, entry)
	}
	return entries
}

// Upcoming builds the forward preview: count months strictly after asOf,
// tagged not-yet-due. A record may already exist for a previewed month
// (advance payments); it is surfaced with its own status instead.
func Upcoming(e Enrollment, payments []PaymentRecord, asOf MonthKey, count int) []LedgerEntry {
	byMonth := indexByMonth(payments)

	var entries []LedgerEntry
	for i := 1; i <= count; i++ {
		m := asOf.AddMonths(i)
		entry := LedgerEntry{
			Month:          m,
			Label:          Format(m, LocaleFR),
			Status:         StatusNotYetDue,
			ExpectedAmount: e.Fee,
		}
		if rec, ok := byMonth[m]; ok {
			r := rec
			entry.Status = r.Status
			entry.ExpectedAmount = r.Amount
			entry.Record = &r
		}
		entries = append(entries, entry)
	}
	return entries
}

// Totals aggregates ledger entries for display. Virtual overdue and
// pending months count at the expected amount; not-yet-due preview
// entries without a record contribute nothing.
func Totals(entries []LedgerEntry) LedgerTotals {
	t := LedgerTotals{
		Expected: decimal.Zero,
		Paid:     decimal.Zero,
		Pending:  decimal.Zero,
		Overdue:  decimal.Zero,
	}
	for _, e := range entries {
		switch e.Status {
		case StatusPaid:
			t.Paid = t.Paid.Add(e.ExpectedAmount)
		case StatusPending:
			t.Pending = t.Pending.Add(e.ExpectedAmount)
		case StatusOverdue:
			t.Overdue = t.Overdue.Add(e.ExpectedAmount)
		default:
			continue // not yet due
		}
		t.Expected = t.Expected.Add(e.ExpectedAmount)
	}
	return t
}

func indexByMonth(payments []PaymentRecord) map[MonthKey]PaymentRecord {
	byMonth := make(map[MonthKey]PaymentRecord, len(payments))
	for _, p := range payments {
		byMonth[p.Month] = p
	}
	return byMonth
}
