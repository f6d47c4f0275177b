/*
store.go - Persistence collaborator contract

PURPOSE:
  Defines the interface between the engine and the storage backend. The
  backend is the sole source of truth: the engine never caches payment
  state across logical operations, and re-reads the authoritative set
  immediately before staging writes.

KEY CONTRACT:
  Apply() submits one logical operation's writes as a single atomic
  batch. Either every staged write lands or none does. The sync pass
  rides its marker update in the same batch, so a failed write leaves
  the marker untouched and the next trigger retries the full pass.

HIERARCHY:
  Conceptually paths are hierarchical (club -> member -> enrollment ->
  payment), mirroring the document store the engine was designed
  against. Implementations flatten this however they like; the unique
  (enrollment, month) invariant must hold regardless.

CONCURRENCY:
  No lock is held across a read-check-then-write sequence. Correctness
  relies on re-reading before staging, atomic batches, and deterministic
  generation: two racing sync passes would stage structurally identical
  creates, so a race degrades to a redundant write. A race between an
  automatic create and a concurrent manual add for the same month is a
  documented weak point, not a guaranteed-safe case; backends with a
  unique index reduce it to a rejected write.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite backend
  - dues/store: in-memory backend for tests and dev

SEE ALSO:
  - sync.go: the heaviest consumer of Apply
  - store/sqlite/sqlite.go: unique index enforcement
*/
package dues

import "context"

// =============================================================================
// STORE - Authoritative payment state
// =============================================================================

// SyncMarker is the persisted state of the last successful sync pass:
// the run date that gates the next automatic trigger, plus the run's
// counts for display. The zero value means no pass has ever completed.
type SyncMarker struct {
	Date     string // "YYYY-MM-DD"
	Created  int
	Promoted int
}

// Store is the persistence collaborator. All reads reflect committed
// state; Apply commits a batch atomically.
type Store interface {
	// Enrollment returns one enrollment or ErrEnrollmentNotFound.
	Enrollment(ctx context.Context, enrollmentID string) (Enrollment, error)

	// ActiveEnrollments returns every active enrollment across the roster.
	ActiveEnrollments(ctx context.Context) ([]Enrollment, error)

	// Payments returns all payment records for an enrollment, unordered.
	Payments(ctx context.Context, enrollmentID string) ([]PaymentRecord, error)

	// Payment returns one record or ErrPaymentNotFound.
	Payment(ctx context.Context, enrollmentID, paymentID string) (PaymentRecord, error)

	// Apply commits a batch of writes atomically: all or nothing.
	Apply(ctx context.Context, batch []Write) error

	// DeletePayment removes one record. ErrPaymentNotFound if missing.
	DeletePayment(ctx context.Context, enrollmentID, paymentID string) error

	// SyncMarker returns the state of the last successful sync pass, or
	// the zero value if none has run.
	SyncMarker(ctx context.Context) (SyncMarker, error)
}

// =============================================================================
// WRITES - Staged mutations submitted through Apply
// =============================================================================

// Write is one staged mutation. Concrete types below; implementations
// type-switch over them.
type Write interface {
	write()
}

// PutPayment creates or replaces the record at
// (enrollment, Record.ID). Replacing is only used by manual edits; create
// paths always use fresh IDs.
type PutPayment struct {
	EnrollmentID string
	Record       PaymentRecord
}

// UpdateStatus transitions an existing record's status in place,
// setting or clearing the payment date to match.
type UpdateStatus struct {
	EnrollmentID string
	PaymentID    string
	Status       Status
}

// SetSyncMarker persists the last-sync date and the run's counts.
type SetSyncMarker struct {
	Date     string // "YYYY-MM-DD"
	Created  int
	Promoted int
}

func (PutPayment) write()    {}
func (UpdateStatus) write()  {}
func (SetSyncMarker) write() {}
