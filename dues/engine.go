/*
engine.go - The engine facade

PURPOSE:
  Engine ties the pure logic (generate.go, reconcile.go) to the
  persistence collaborator and the clock. Each exported method is one
  logical operation that runs to completion: read authoritative state,
  compute, submit one atomic batch. Nothing is cached between calls.

OPERATIONS:
  BuildLedger / BuildLedgerWithUpcoming  read path (reconcile.go)
  RunSync                                whole-roster repair (sync.go)
  CreateAdvanceBatch                     bulk pre-payment (advance.go)
  AddPayment / EditPayment / DeletePayment  manual gate (manual.go)
*/
package dues

import "context"

// MaxAdvanceMonths bounds advance batch size.
const MaxAdvanceMonths = 12

// Engine is the recurring payment obligation engine. Safe for concurrent
// use; all shared state lives behind the Store.
type Engine struct {
	Store Store
	Clock Clock
}

// NewEngine creates an engine on the given store with the system clock.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store, Clock: SystemClock{}}
}

// BuildLedger returns the reconciled ledger for one enrollment, ascending
// by month, from the start month through the current month.
func (en *Engine) BuildLedger(ctx context.Context, enrollmentID string) ([]LedgerEntry, error) {
	return en.BuildLedgerWithUpcoming(ctx, enrollmentID, 0)
}

// BuildLedgerWithUpcoming additionally appends `upcoming` forward-preview
// months tagged not-yet-due after the current month.
func (en *Engine) BuildLedgerWithUpcoming(ctx context.Context, enrollmentID string, upcoming int) ([]LedgerEntry, error) {
	enrollment, err := en.Store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	payments, err := en.Store.Payments(ctx, enrollmentID)
	if err != nil {
		return nil, persistErr("load payments", err)
	}

	current := CurrentMonth(en.Clock)
	entries := Reconcile(enrollment, payments, current)
	if upcoming > 0 {
		entries = append(entries, Upcoming(enrollment, payments, current, upcoming)...)
	}
	return entries, nil
}
