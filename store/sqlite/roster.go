/*
roster.go - Member, activity and enrollment persistence

PURPOSE:
  The roster side of the store: who is enrolled in what, for how much,
  since when. The dues engine only sees enrollments through the
  dues.Store reads in sqlite.go; these methods serve the API layer's
  CRUD surface.

LIFECYCLE:
  Members are deactivated, not deleted: the original keeps the payment
  history of former members visible, with the deactivation date and
  reason. Enrollments, by contrast, are removed outright when a member
  drops an activity, and the removal cascades to all payment records.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/dues-engine/dues"
)

// Member is a roster entity owning zero or more enrollments.
type Member struct {
	ID               string
	Name             string
	BirthDate        string // "YYYY-MM-DD", optional
	Phone            string
	Gender           string
	Active           bool
	DeactivatedAt    string // "YYYY-MM-DD" when inactive
	DeactivateReason string
	Notes            string
	CreatedAt        time.Time
}

// Activity is a recurring activity members enroll in.
type Activity struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// =============================================================================
// MEMBERS
// =============================================================================

func (s *Store) SaveMember(ctx context.Context, m Member) error {
	status := "active"
	if !m.Active {
		status = "inactive"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, name, birth_date, phone, gender, status, deactivated_at, deactivate_reason, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			birth_date = excluded.birth_date,
			phone = excluded.phone,
			gender = excluded.gender`,
		m.ID, m.Name, m.BirthDate, m.Phone, m.Gender, status,
		nullIfEmpty(m.DeactivatedAt), nullIfEmpty(m.DeactivateReason), m.Notes,
		m.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetMember(ctx context.Context, memberID string) (*Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, birth_date, phone, gender, status, deactivated_at, deactivate_reason, notes, created_at
		FROM members WHERE id = ?`, memberID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, birth_date, phone, gender, status, deactivated_at, deactivate_reason, notes, created_at
		FROM members ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMember(row interface{ Scan(...any) error }) (Member, error) {
	var m Member
	var birthDate, phone, gender, status, deactivatedAt, reason, notes sql.NullString
	var createdAt string
	if err := row.Scan(&m.ID, &m.Name, &birthDate, &phone, &gender, &status, &deactivatedAt, &reason, &notes, &createdAt); err != nil {
		return Member{}, err
	}
	m.BirthDate = birthDate.String
	m.Phone = phone.String
	m.Gender = gender.String
	m.Active = status.String == "active"
	m.DeactivatedAt = deactivatedAt.String
	m.DeactivateReason = reason.String
	m.Notes = notes.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		m.CreatedAt = t
	}
	return m, nil
}

// DeactivateMember marks a member inactive. Their enrollments stop
// generating obligations (the sync pass only walks active enrollments);
// payment history stays in place.
func (s *Store) DeactivateMember(ctx context.Context, memberID, date, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE members SET status = 'inactive', deactivated_at = ?, deactivate_reason = ?
		WHERE id = ?`, date, reason, memberID)
	if err != nil {
		return err
	}
	return requireRow(res, memberID)
}

// ReactivateMember restores an inactive member.
func (s *Store) ReactivateMember(ctx context.Context, memberID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE members SET status = 'active', deactivated_at = NULL, deactivate_reason = NULL
		WHERE id = ?`, memberID)
	if err != nil {
		return err
	}
	return requireRow(res, memberID)
}

// SaveMemberNotes replaces a member's free-form notes.
func (s *Store) SaveMemberNotes(ctx context.Context, memberID, notes string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE members SET notes = ? WHERE id = ?`, notes, memberID)
	if err != nil {
		return err
	}
	return requireRow(res, memberID)
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func (s *Store) SaveActivity(ctx context.Context, a Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		a.ID, a.Name, a.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) ListActivities(ctx context.Context) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM activities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

// CreateEnrollment links a member to an activity with a fee and start date.
func (s *Store) CreateEnrollment(ctx context.Context, e dues.Enrollment) error {
	status := "active"
	if !e.Active {
		status = "inactive"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, member_id, activity_id, fee, start_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MemberID, e.ActivityID, e.Fee.String(),
		e.StartDate.Format(dateLayout), status,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// UpdateEnrollment edits fee and start date. Already-persisted payment
// records keep the amount in force when they were created; only future
// obligations pick up the new fee.
func (s *Store) UpdateEnrollment(ctx context.Context, enrollmentID string, fee string, startDate time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET fee = ?, start_date = ? WHERE id = ?`,
		fee, startDate.Format(dateLayout), enrollmentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", dues.ErrEnrollmentNotFound, enrollmentID)
	}
	return nil
}

// SetEnrollmentStatus toggles an enrollment's lifecycle status.
func (s *Store) SetEnrollmentStatus(ctx context.Context, enrollmentID string, active bool) error {
	status := "inactive"
	if active {
		status = "active"
	}
	res, err := s.db.ExecContext(ctx, `UPDATE enrollments SET status = ? WHERE id = ?`, status, enrollmentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", dues.ErrEnrollmentNotFound, enrollmentID)
	}
	return nil
}

// RemoveEnrollment drops an enrollment; the foreign key cascades the
// deletion to all of its payment records.
func (s *Store) RemoveEnrollment(ctx context.Context, enrollmentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = ?`, enrollmentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", dues.ErrEnrollmentNotFound, enrollmentID)
	}
	return nil
}

// EnrollmentsByMember returns every enrollment for one member, active or not.
func (s *Store) EnrollmentsByMember(ctx context.Context, memberID string) ([]dues.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments e
		JOIN activities a ON a.id = e.activity_id
		WHERE e.member_id = ?
		ORDER BY a.name`, memberID)
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
// HELPERS
// =============================================================================

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result, memberID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("member not found: %s", memberID)
	}
	return nil
}
