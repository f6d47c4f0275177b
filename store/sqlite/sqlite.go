/*
Package sqlite provides the SQLite-backed implementation of dues.Store
plus the roster tables the surrounding application needs.

PURPOSE:
  Implements the persistence collaborator contract with real atomic
  batches (SQL transactions) and database-level enforcement of the
  central invariant. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  members:      roster entities with lifecycle (active/inactive)
  activities:   recurring activities with a display name
  enrollments:  (member, activity) pairing with fee and start date
  payments:     one row per owed month per enrollment
  sync_marker:  single-row table holding the last successful sync date

INVARIANT ENFORCEMENT:
  uq_payments_enrollment_month is a UNIQUE index on
  (enrollment_id, month). Even when every application-level existence
  check loses a race, the database rejects the second record for the
  same month and the whole batch rolls back.

CASCADE:
  payments.enrollment_id references enrollments(id) ON DELETE CASCADE,
  and enrollments.member_id references members(id) ON DELETE CASCADE:
  dropping an enrollment (or a member) deletes its payment records.

ATOMIC BATCHES:
  Apply() runs every staged write inside one transaction. The sync
  pass's marker update rides in the same transaction as its creates and
  promotions, so a failed write leaves the marker unchanged.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/club.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := dues.NewEngine(store)

SEE ALSO:
  - dues/store.go: the contract this implements
  - roster.go: member/activity/enrollment persistence
  - dues/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/dues-engine/dues"
)

const dateLayout = "2006-01-02"

// Store implements dues.Store and the roster persistence using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Roster
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		birth_date TEXT,
		phone TEXT,
		gender TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		deactivated_at TEXT,
		deactivate_reason TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		activity_id TEXT NOT NULL REFERENCES activities(id),
		fee TEXT NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_member
		ON enrollments(member_id);

	-- Payments: one row per owed month per enrollment
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_date TEXT,
		auto_created INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: the central invariant. At most one payment record per
	-- (enrollment, month), held even when application-level checks race.
	CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_enrollment_month
		ON payments(enrollment_id, month);

	CREATE INDEX IF NOT EXISTS idx_payments_enrollment
		ON payments(enrollment_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status
		ON payments(status);

	-- Last successful sync pass, persisted so the daily gate survives
	-- restarts and separate sessions. Counts are kept for the status
	-- surface.
	CREATE TABLE IF NOT EXISTS sync_marker (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_run TEXT NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		promoted INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENROLLMENT READS (dues.Store interface)
// =============================================================================

const enrollmentColumns = `
	e.id, e.member_id, e.activity_id, a.name, e.fee, e.start_date, e.status`

func scanEnrollment(row interface{ Scan(...any) error }) (dues.Enrollment, error) {
	var e dues.Enrollment
	var fee, startDate, status string
	if err := row.Scan(&e.ID, &e.MemberID, &e.ActivityID, &e.ActivityName, &fee, &startDate, &status); err != nil {
		return dues.Enrollment{}, err
	}
	d, err := decimal.NewFromString(fee)
	if err != nil {
		return dues.Enrollment{}, fmt.Errorf("bad fee %q: %w", fee, err)
	}
	t, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return dues.Enrollment{}, fmt.Errorf("bad start date %q: %w", startDate, err)
	}
	e.Fee = d
	e.StartDate = t
	e.Active = status == "active"
	return e, nil
}

func (s *Store) Enrollment(ctx context.Context, enrollmentID string) (dues.Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments e
		JOIN activities a ON a.id = e.activity_id
		WHERE e.id = ?`, enrollmentID)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return dues.Enrollment{}, fmt.Errorf("%w: %s", dues.ErrEnrollmentNotFound, enrollmentID)
	}
	return e, err
}

func (s *Store) ActiveEnrollments(ctx context.Context) ([]dues.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments e
		JOIN activities a ON a.id = e.activity_id
		JOIN members m ON m.id = e.member_id
		WHERE e.status = 'active' AND m.status = 'active'
		ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dues.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYMENT READS (dues.Store interface)
// =============================================================================

const paymentColumns = `id, month, amount, status, payment_date, auto_created, created_at`

func scanPayment(row interface{ Scan(...any) error }) (dues.PaymentRecord, error) {
	var rec dues.PaymentRecord
	var month, amount, status, createdAt string
	var paymentDate sql.NullString
	var auto int
	if err := row.Scan(&rec.ID, &month, &amount, &status, &paymentDate, &auto, &createdAt); err != nil {
		return dues.PaymentRecord{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return dues.PaymentRecord{}, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	rec.Month = dues.MonthKey(month)
	rec.Amount = d
	rec.Status = dues.Status(status)
	rec.AutoCreated = auto != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if paymentDate.Valid {
		if t, err := time.Parse(time.RFC3339, paymentDate.String); err == nil {
			rec.PaymentDate = &t
		}
	}
	return rec, nil
}

func (s *Store) Payments(ctx context.Context, enrollmentID string) ([]dues.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE enrollment_id = ?
		ORDER BY month ASC`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dues.PaymentRecord
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Payment(ctx context.Context, enrollmentID, paymentID string) (dues.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE enrollment_id = ? AND id = ?`, enrollmentID, paymentID)
	rec, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return dues.PaymentRecord{}, fmt.Errorf("%w: %s", dues.ErrPaymentNotFound, paymentID)
	}
	return rec, err
}

// =============================================================================
// WRITES (dues.Store interface)
// =============================================================================

// Apply commits the batch in one SQL transaction: all or nothing.
func (s *Store) Apply(ctx context.Context, batch []dues.Write) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range batch {
		switch w := w.(type) {
		case dues.PutPayment:
			if err := applyPut(ctx, tx, w); err != nil {
				return err
			}
		case dues.UpdateStatus:
			if err := applyStatus(ctx, tx, w); err != nil {
				return err
			}
		case dues.SetSyncMarker:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sync_marker (id, last_run, created, promoted) VALUES (1, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					last_run = excluded.last_run,
					created = excluded.created,
					promoted = excluded.promoted`, w.Date, w.Created, w.Promoted); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown write type %T", w)
		}
	}
	return tx.Commit()
}

func applyPut(ctx context.Context, tx *sql.Tx, w dues.PutPayment) error {
	var paymentDate any
	if w.Record.PaymentDate != nil {
		paymentDate = w.Record.PaymentDate.UTC().Format(time.RFC3339)
	}
	auto := 0
	if w.Record.AutoCreated {
		auto = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, enrollment_id, month, amount, status, payment_date, auto_created, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			month = excluded.month,
			amount = excluded.amount,
			status = excluded.status,
			payment_date = excluded.payment_date`,
		w.Record.ID, w.EnrollmentID, string(w.Record.Month),
		w.Record.Amount.String(), string(w.Record.Status),
		paymentDate, auto, w.Record.CreatedAt.UTC().Format(time.RFC3339))
	if isMonthUniquenessError(err) {
		// The unique index caught a racing create for the same month.
		return fmt.Errorf("%w: %s", dues.ErrDuplicateMonth, w.Record.Month)
	}
	return err
}

// isMonthUniquenessError detects a violation of uq_payments_enrollment_month.
// SQLite reports column-based unique indexes by column list, not index name.
func isMonthUniquenessError(err error) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "payments.month")
}

func applyStatus(ctx context.Context, tx *sql.Tx, w dues.UpdateStatus) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = ?,
		    payment_date = CASE WHEN ? = 'paid' THEN payment_date ELSE NULL END
		WHERE enrollment_id = ? AND id = ?`,
		string(w.Status), string(w.Status), w.EnrollmentID, w.PaymentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", dues.ErrPaymentNotFound, w.PaymentID)
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, enrollmentID, paymentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payments WHERE enrollment_id = ? AND id = ?`, enrollmentID, paymentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", dues.ErrPaymentNotFound, paymentID)
	}
	return nil
}

func (s *Store) SyncMarker(ctx context.Context) (dues.SyncMarker, error) {
	var marker dues.SyncMarker
	err := s.db.QueryRowContext(ctx, `
		SELECT last_run, created, promoted FROM sync_marker WHERE id = 1`).
		Scan(&marker.Date, &marker.Created, &marker.Promoted)
	if err == sql.ErrNoRows {
		return dues.SyncMarker{}, nil
	}
	return marker, err
}

// Compile-time check
var _ dues.Store = (*Store)(nil)
