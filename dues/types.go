/*
Package dues implements the recurring payment obligation engine.

PURPOSE:
  Given an enrollment's start date and monthly fee, the engine derives
  which months are owed, reconciles owed months against recorded payments,
  classifies each month into a status, materializes missing payment
  records exactly once, and supports bulk creation of pre-paid future
  months.

KEY CONCEPTS IN THIS FILE (types.go):
  - Enrollment: a member's subscription to one activity (fee + start date)
  - PaymentRecord: the persisted payment state of one owed month
  - Obligation: a computed, never-persisted (month, expected amount) pair
  - LedgerEntry: one display row produced by reconciliation
  - SyncReport: counts returned by the auto-sync pass

CENTRAL INVARIANT:
  At most one PaymentRecord per (enrollment, MonthKey). Every write path
  (auto-sync, advance batch, manual CRUD) consults the same authoritative
  payment set before writing, and the SQLite store backs the invariant
  with a unique index.

DESIGN PRINCIPLES:
  1. Precision: fees and amounts are decimal.Decimal, never float.
  2. Derived state: obligations and virtual statuses are computed on
     demand from the store, never cached across logical operations.
  3. Explicit clock: "the current month" always comes from a Clock.

SEE ALSO:
  - month.go: MonthKey arithmetic
  - generate.go: obligation generation
  - reconcile.go: ledger construction
  - sync.go: the auto-sync pass
*/
package dues

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Payment record state machine
// =============================================================================

// Status is the payment state of one owed month.
//
// Transitions:
//   pending -> overdue   automatic only (sync pass, month now in the past)
//   pending -> paid      manual only (sets the payment date)
//   overdue -> paid      manual only (sets the payment date)
//   paid    -> pending   manual edit only (clears the payment date)
//   paid    -> overdue   manual edit only (clears the payment date)
//
// No automatic transition ever leaves paid.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"

	// StatusNotYetDue tags forward-preview months that are not part of
	// the obligation sequence. It is never persisted on a record.
	StatusNotYetDue Status = "not_yet_due"
)

// ValidStatus reports whether s is a persistable record status.
func ValidStatus(s Status) bool {
	return s == StatusPaid || s == StatusPending || s == StatusOverdue
}

// =============================================================================
// ENROLLMENT - (member, activity) pairing with fee and start date
// =============================================================================

// Enrollment is a member's subscription to one recurring activity.
// The fee is the amount currently in force; already-persisted records keep
// the amount in force when they were created.
type Enrollment struct {
	ID           string
	MemberID     string
	ActivityID   string
	ActivityName string
	Fee          decimal.Decimal
	StartDate    time.Time
	Active       bool
}

// StartMonth returns the first owed month.
func (e Enrollment) StartMonth() MonthKey {
	return MonthOf(e.StartDate)
}

// =============================================================================
// PAYMENT RECORD - Persisted payment state of one month
// =============================================================================

// PaymentRecord is the persisted record of a due month's payment state.
// Belongs to exactly one enrollment; at most one per (enrollment, month).
type PaymentRecord struct {
	ID          string
	Month       MonthKey
	Amount      decimal.Decimal
	Status      Status
	PaymentDate *time.Time // set while paid, nil otherwise
	AutoCreated bool       // materialized by the sync pass
	CreatedAt   time.Time
}

// =============================================================================
// OBLIGATION - Computed due month, never persisted
// =============================================================================

// Obligation is a virtual (enrollment, month, expected amount) triple. It
// is the input to reconciliation and synchronization, not an entity with
// its own lifecycle.
type Obligation struct {
	EnrollmentID   string
	Month          MonthKey
	ExpectedAmount decimal.Decimal
}

// =============================================================================
// LEDGER ENTRY - One display row of the reconciled ledger
// =============================================================================

// LedgerEntry is one month of the display ledger: either backed by a real
// record (Record != nil) or virtually derived for a month with no record.
type LedgerEntry struct {
	Month          MonthKey
	Label          string
	Status         Status
	ExpectedAmount decimal.Decimal
	Record         *PaymentRecord // nil for derived entries
	AutoDerived    bool           // true when no record backs the entry
}

// LedgerTotals aggregates a reconciled ledger for display. Virtual overdue
// months count toward Overdue at the expected amount.
type LedgerTotals struct {
	Expected decimal.Decimal
	Paid     decimal.Decimal
	Pending  decimal.Decimal
	Overdue  decimal.Decimal
}

// =============================================================================
// SYNC REPORT - Result of one auto-sync pass
// =============================================================================

// SyncReport summarizes one auto-sync pass.
type SyncReport struct {
	Created  int  // payment records materialized
	Promoted int  // pending records promoted to overdue
	Skipped  bool // pass was gated by the sync marker
	RunDate  string
}
