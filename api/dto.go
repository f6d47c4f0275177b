/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Internal amounts are decimal.Decimal; DTOs carry float64 for JSON
  ergonomics. Conversion happens only at this boundary.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/dues-engine/dues"
	"github.com/warp/dues-engine/store/sqlite"
)

// =============================================================================
// ROSTER TYPES
// =============================================================================

// MemberDTO represents a roster member in API responses.
type MemberDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	BirthDate        string `json:"birth_date,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Active           bool   `json:"active"`
	DeactivatedAt    string `json:"deactivated_at,omitempty"`
	DeactivateReason string `json:"deactivate_reason,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// CreateMemberRequest is the request to create a member.
type CreateMemberRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
}

// DeactivateMemberRequest marks a member inactive with a reason.
type DeactivateMemberRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// NotesRequest replaces a member's notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ActivityDTO represents an activity.
type ActivityDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateActivityRequest is the request to create an activity.
type CreateActivityRequest struct {
	Name string `json:"name"`
}

// EnrollmentDTO represents a member's enrollment in one activity.
type EnrollmentDTO struct {
	ID           string  `json:"id"`
	MemberID     string  `json:"member_id"`
	ActivityID   string  `json:"activity_id"`
	ActivityName string  `json:"activity_name"`
	Fee          float64 `json:"fee"`
	StartDate    string  `json:"start_date"`
	Active       bool    `json:"active"`
}

// CreateEnrollmentRequest enrolls a member in an activity.
type CreateEnrollmentRequest struct {
	ActivityID string  `json:"activity_id"`
	Fee        float64 `json:"fee"`
	StartDate  string  `json:"start_date"` // "YYYY-MM-DD"
}

// UpdateEnrollmentRequest edits fee and start date, and optionally
// toggles the enrollment's lifecycle status.
type UpdateEnrollmentRequest struct {
	Fee       float64 `json:"fee"`
	StartDate string  `json:"start_date"`
	Active    *bool   `json:"active,omitempty"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// PaymentDTO represents a persisted payment record.
type PaymentDTO struct {
	ID          string  `json:"id"`
	Month       string  `json:"month"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	PaymentDate string  `json:"payment_date,omitempty"`
	AutoCreated bool    `json:"auto_created"`
}

// LedgerEntryDTO is one month of the reconciled ledger.
type LedgerEntryDTO struct {
	Month          string      `json:"month"`
	Label          string      `json:"label"`
	Status         string      `json:"status"`
	ExpectedAmount float64     `json:"expected_amount"`
	Record         *PaymentDTO `json:"record,omitempty"`
	AutoDerived    bool        `json:"auto_derived"`
}

// LedgerResponse wraps the ledger with its totals.
type LedgerResponse struct {
	EnrollmentID string           `json:"enrollment_id"`
	Entries      []LedgerEntryDTO `json:"entries"`
	Totals       TotalsDTO        `json:"totals"`
}

// TotalsDTO aggregates a ledger for display.
type TotalsDTO struct {
	Expected float64 `json:"expected"`
	Paid     float64 `json:"paid"`
	Pending  float64 `json:"pending"`
	Overdue  float64 `json:"overdue"`
}

// MemberSummaryDTO aggregates all of a member's enrollments.
type MemberSummaryDTO struct {
	MemberID string    `json:"member_id"`
	Totals   TotalsDTO `json:"totals"`
}

// ClubSummaryDTO aggregates dues across the whole roster.
type ClubSummaryDTO struct {
	Members     int       `json:"members"`
	Enrollments int       `json:"enrollments"`
	Totals      TotalsDTO `json:"totals"`
}

// =============================================================================
// SYNC TYPES
// =============================================================================

// SyncRequest triggers a sync pass.
type SyncRequest struct {
	Force bool `json:"force"`
}

// SyncResponse reports one pass.
type SyncResponse struct {
	Created  int    `json:"created"`
	Promoted int    `json:"promoted"`
	Skipped  bool   `json:"skipped"`
	RunDate  string `json:"run_date,omitempty"`
}

// SyncStatusDTO exposes the persisted marker: last-run date plus that
// run's counts.
type SyncStatusDTO struct {
	LastRun  string `json:"last_run,omitempty"`
	Created  int    `json:"created"`
	Promoted int    `json:"promoted"`
}

// =============================================================================
// PAYMENT CRUD TYPES
// =============================================================================

// AddPaymentRequest creates one payment record manually.
type AddPaymentRequest struct {
	Month       string  `json:"month"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	PaymentDate string  `json:"payment_date,omitempty"` // RFC 3339, optional
}

// EditPaymentRequest partially updates a record; empty fields are unchanged.
type EditPaymentRequest struct {
	Month       string   `json:"month,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Status      string   `json:"status,omitempty"`
	PaymentDate string   `json:"payment_date,omitempty"`
}

// AdvanceBatchRequest creates consecutive pre-paid months.
type AdvanceBatchRequest struct {
	StartMonth string `json:"start_month"`
	Count      int    `json:"count"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Months  []string `json:"months,omitempty"` // conflicting months on 409
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMemberDTO(m sqlite.Member) MemberDTO {
	return MemberDTO{
		ID:               m.ID,
		Name:             m.Name,
		BirthDate:        m.BirthDate,
		Phone:            m.Phone,
		Gender:           m.Gender,
		Active:           m.Active,
		DeactivatedAt:    m.DeactivatedAt,
		DeactivateReason: m.DeactivateReason,
		Notes:            m.Notes,
	}
}

func toEnrollmentDTO(e dues.Enrollment) EnrollmentDTO {
	fee, _ := e.Fee.Float64()
	return EnrollmentDTO{
		ID:           e.ID,
		MemberID:     e.MemberID,
		ActivityID:   e.ActivityID,
		ActivityName: e.ActivityName,
		Fee:          fee,
		StartDate:    e.StartDate.Format("2006-01-02"),
		Active:       e.Active,
	}
}

func toPaymentDTO(p dues.PaymentRecord) PaymentDTO {
	amount, _ := p.Amount.Float64()
	dto := PaymentDTO{
		ID:          p.ID,
		Month:       string(p.Month),
		Amount:      amount,
		Status:      string(p.Status),
		AutoCreated: p.AutoCreated,
	}
	if p.PaymentDate != nil {
		dto.PaymentDate = p.PaymentDate.Format(time.RFC3339)
	}
	return dto
}

func toLedgerEntryDTO(e dues.LedgerEntry) LedgerEntryDTO {
	expected, _ := e.ExpectedAmount.Float64()
	dto := LedgerEntryDTO{
		Month:          string(e.Month),
		Label:          e.Label,
		Status:         string(e.Status),
		ExpectedAmount: expected,
		AutoDerived:    e.AutoDerived,
	}
	if e.Record != nil {
		rec := toPaymentDTO(*e.Record)
		dto.Record = &rec
	}
	return dto
}

func toTotalsDTO(t dues.LedgerTotals) TotalsDTO {
	expected, _ := t.Expected.Float64()
	paid, _ := t.Paid.Float64()
	pending, _ := t.Pending.Float64()
	overdue, _ := t.Overdue.Float64()
	return TotalsDTO{Expected: expected, Paid: paid, Pending: pending, Overdue: overdue}
}
