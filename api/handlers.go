/*
handlers.go - HTTP API handlers for the dues management system

PURPOSE:
  Exposes the dues engine and the roster via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Members:
    GET    /api/members                      List members
    POST   /api/members                      Create member
    GET    /api/members/{id}                 Member details + enrollments
    POST   /api/members/{id}/deactivate      Deactivate with date + reason
    POST   /api/members/{id}/reactivate      Restore an inactive member
    PUT    /api/members/{id}/notes           Replace notes
    GET    /api/members/{id}/summary         Dues totals across enrollments
    POST   /api/members/{id}/enrollments     Enroll in an activity

  Activities:
    GET    /api/activities                   List activities
    POST   /api/activities                   Create activity

  Enrollments:
    PUT    /api/enrollments/{id}             Edit fee / start date
    DELETE /api/enrollments/{id}             Drop (cascades to payments)
    GET    /api/enrollments/{id}/ledger      Reconciled ledger (?upcoming=N)

  Payments:
    POST   /api/enrollments/{id}/payments          Manual add
    PUT    /api/enrollments/{id}/payments/{pid}    Manual edit
    DELETE /api/enrollments/{id}/payments/{pid}    Manual delete
    POST   /api/enrollments/{id}/payments/advance  Advance batch

  Summary:
    GET    /api/summary                      Club-wide dues totals

  Sync:
    POST   /api/sync                         Run the sync pass ({"force": bool})
    GET    /api/sync/status                  Last successful run date + counts

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Enrollment or payment record not found
  - 409: Duplicate month conflict (lists every conflicting month)
  - 500: Persistence errors

SECURITY NOTE:
  No authentication middleware. Auth is owned by the surrounding
  application, not this engine.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: The daily sync trigger
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/dues-engine/dues"
	"github.com/warp/dues-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *dues.Engine
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:  store,
		Engine: dues.NewEngine(store),
	}
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMember creates a new member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	m := sqlite.Member{
		ID:        uuid.NewString(),
		Name:      req.Name,
		BirthDate: req.BirthDate,
		Phone:     req.Phone,
		Gender:    req.Gender,
		Active:    true,
	}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// GetMember returns one member with their enrollments.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}

	enrollments, err := h.Store.EnrollmentsByMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get enrollments", err)
		return
	}
	dtos := make([]EnrollmentDTO, len(enrollments))
	for i, e := range enrollments {
		dtos[i] = toEnrollmentDTO(e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"member":      toMemberDTO(*m),
		"enrollments": dtos,
	})
}

// UpdateMember edits a member's identity fields. Lifecycle and notes
// have their own endpoints.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}

	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	m.Name = req.Name
	m.BirthDate = req.BirthDate
	m.Phone = req.Phone
	m.Gender = req.Gender
	if err := h.Store.SaveMember(r.Context(), *m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// DeactivateMember marks a member inactive with a date and reason.
func (h *Handler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DeactivateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}

	if err := h.Store.DeactivateMember(r.Context(), id, req.Date, req.Reason); err != nil {
		writeError(w, http.StatusNotFound, "Member not found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

// ReactivateMember restores an inactive member.
func (h *Handler) ReactivateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.ReactivateMember(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "Member not found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "active"})
}

// SaveNotes replaces a member's notes.
func (h *Handler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Store.SaveMemberNotes(r.Context(), id, req.Notes); err != nil {
		writeError(w, http.StatusNotFound, "Member not found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

// GetMemberSummary aggregates dues totals across all of a member's
// enrollments. Virtual overdue months count toward the overdue total.
func (h *Handler) GetMemberSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	m, err := h.Store.GetMember(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}

	enrollments, err := h.Store.EnrollmentsByMember(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get enrollments", err)
		return
	}

	total, err := h.enrollmentTotals(ctx, enrollments)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, MemberSummaryDTO{MemberID: id, Totals: toTotalsDTO(total)})
}

// GetClubSummary aggregates dues across every member's enrollments, the
// roster-wide view of what is paid, pending, and overdue.
func (h *Handler) GetClubSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	members, err := h.Store.ListMembers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	summary := ClubSummaryDTO{Members: len(members)}
	total := zeroTotals()
	for _, m := range members {
		enrollments, err := h.Store.EnrollmentsByMember(ctx, m.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get enrollments", err)
			return
		}
		summary.Enrollments += len(enrollments)

		t, err := h.enrollmentTotals(ctx, enrollments)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to build ledger", err)
			return
		}
		total = addTotals(total, t)
	}

	summary.Totals = toTotalsDTO(total)
	writeJSON(w, http.StatusOK, summary)
}

// enrollmentTotals sums reconciled ledger totals over a set of enrollments.
func (h *Handler) enrollmentTotals(ctx context.Context, enrollments []dues.Enrollment) (dues.LedgerTotals, error) {
	total := zeroTotals()
	for _, e := range enrollments {
		entries, err := h.Engine.BuildLedger(ctx, e.ID)
		if err != nil {
			return dues.LedgerTotals{}, err
		}
		total = addTotals(total, dues.Totals(entries))
	}
	return total, nil
}

func zeroTotals() dues.LedgerTotals {
	return dues.LedgerTotals{
		Expected: decimal.Zero,
		Paid:     decimal.Zero,
		Pending:  decimal.Zero,
		Overdue:  decimal.Zero,
	}
}

func addTotals(a, b dues.LedgerTotals) dues.LedgerTotals {
	return dues.LedgerTotals{
		Expected: a.Expected.Add(b.Expected),
		Paid:     a.Paid.Add(b.Paid),
		Pending:  a.Pending.Add(b.Pending),
		Overdue:  a.Overdue.Add(b.Overdue),
	}
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// ListActivities returns all activities.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.Store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activities", err)
		return
	}
	dtos := make([]ActivityDTO, len(activities))
	for i, a := range activities {
		dtos[i] = ActivityDTO{ID: a.ID, Name: a.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateActivity creates a new activity.
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	a := sqlite.Activity{ID: uuid.NewString(), Name: req.Name}
	if err := h.Store.SaveActivity(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, ActivityDTO{ID: a.ID, Name: a.Name})
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// CreateEnrollment enrolls a member in an activity.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")

	var req CreateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	e := dues.Enrollment{
		ID:         uuid.NewString(),
		MemberID:   memberID,
		ActivityID: req.ActivityID,
		Fee:        decimal.NewFromFloat(req.Fee),
		StartDate:  startDate,
		Active:     true,
	}
	if err := h.Store.CreateEnrollment(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create enrollment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(e))
}

// UpdateEnrollment edits an enrollment's fee and start date.
func (h *Handler) UpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	fee := decimal.NewFromFloat(req.Fee)
	if err := h.Store.UpdateEnrollment(r.Context(), id, fee.String(), startDate); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Active != nil {
		if err := h.Store.SetEnrollmentStatus(r.Context(), id, *req.Active); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

// DeleteEnrollment drops an enrollment; payment records cascade away.
func (h *Handler) DeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.RemoveEnrollment(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// LEDGER HANDLER
// =============================================================================

// GetLedger returns the reconciled ledger for one enrollment. The
// optional ?upcoming=N query appends N forward-preview months tagged
// not-yet-due.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	upcoming := 0
	if v := r.URL.Query().Get("upcoming"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid upcoming count", err)
			return
		}
		upcoming = n
	}

	entries, err := h.Engine.BuildLedgerWithUpcoming(r.Context(), id, upcoming)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, LedgerResponse{
		EnrollmentID: id,
		Entries:      dtos,
		Totals:       toTotalsDTO(dues.Totals(entries)),
	})
}

// =============================================================================
// SYNC HANDLERS
// =============================================================================

// RunSync triggers the whole-roster sync pass. force bypasses the
// once-per-day gate.
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	report, err := h.Engine.RunSync(r.Context(), req.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Created:  report.Created,
		Promoted: report.Promoted,
		Skipped:  report.Skipped,
		RunDate:  report.RunDate,
	})
}

// GetSyncStatus returns the persisted last-run date and counts.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	marker, err := h.Store.SyncMarker(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read sync marker", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncStatusDTO{
		LastRun:  marker.Date,
		Created:  marker.Created,
		Promoted: marker.Promoted,
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// AddPayment creates one payment record manually.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "id")

	var req AddPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := dues.AddPaymentInput{
		Month:  dues.MonthKey(req.Month),
		Amount: decimal.NewFromFloat(req.Amount),
		Status: dues.Status(req.Status),
	}
	if req.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339, req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date (use RFC 3339)", err)
			return
		}
		in.PaymentDate = &t
	}

	rec, err := h.Engine.AddPayment(r.Context(), enrollmentID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(rec))
}

// EditPayment partially updates a payment record.
func (h *Handler) EditPayment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "id")
	paymentID := chi.URLParam(r, "paymentID")

	var req EditPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var in dues.EditPaymentInput
	if req.Month != "" {
		m := dues.MonthKey(req.Month)
		in.Month = &m
	}
	if req.Amount != nil {
		d := decimal.NewFromFloat(*req.Amount)
		in.Amount = &d
	}
	if req.Status != "" {
		s := dues.Status(req.Status)
		in.Status = &s
	}
	if req.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339, req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date (use RFC 3339)", err)
			return
		}
		in.PaymentDate = &t
	}

	rec, err := h.Engine.EditPayment(r.Context(), enrollmentID, paymentID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(rec))
}

// DeletePayment removes a payment record.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "id")
	paymentID := chi.URLParam(r, "paymentID")

	if err := h.Engine.DeletePayment(r.Context(), enrollmentID, paymentID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// CreateAdvanceBatch creates consecutive pre-paid months, all-or-nothing.
func (h *Handler) CreateAdvanceBatch(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "id")

	var req AdvanceBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records, err := h.Engine.CreateAdvanceBatch(r.Context(), enrollmentID, dues.MonthKey(req.StartMonth), req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PaymentDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPaymentDTO(rec)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses. Duplicate-month
// conflicts carry the full list of conflicting months.
func writeDomainError(w http.ResponseWriter, err error) {
	var dup *dues.DuplicateMonthError
	if errors.As(err, &dup) {
		months := make([]string, len(dup.Months))
		for i, m := range dup.Months {
			months[i] = string(m)
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Payment already recorded for month(s)",
			Details: err.Error(),
			Months:  months,
		})
		return
	}

	switch {
	case errors.Is(err, dues.ErrDuplicateMonth):
		writeError(w, http.StatusConflict, "Duplicate month", err)
	case dues.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case dues.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
