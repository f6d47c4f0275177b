// Package store provides dues.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/dues-engine/dues"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements dues.Store with maps. It mimics the production
// backend's guarantees: atomic batches and the unique (enrollment, month)
// index.
type Memory struct {
	mu          sync.RWMutex
	enrollments map[string]dues.Enrollment
	payments    map[string]map[string]dues.PaymentRecord // enrollment -> payment ID -> record
	marker      dues.SyncMarker

	// ApplyErr, when set, fails the next Apply without mutating anything.
	// Lets tests exercise the no-partial-effects contract.
	ApplyErr error
}

func NewMemory() *Memory {
	return &Memory{
		enrollments: make(map[string]dues.Enrollment),
		payments:    make(map[string]map[string]dues.PaymentRecord),
	}
}

// SaveEnrollment creates or replaces an enrollment (roster seeding).
func (m *Memory) SaveEnrollment(e dues.Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[e.ID] = e
	if m.payments[e.ID] == nil {
		m.payments[e.ID] = make(map[string]dues.PaymentRecord)
	}
}

// RemoveEnrollment drops an enrollment and cascades to its payments.
func (m *Memory) RemoveEnrollment(enrollmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enrollments, enrollmentID)
	delete(m.payments, enrollmentID)
}

func (m *Memory) Enrollment(_ context.Context, enrollmentID string) (dues.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return dues.Enrollment{}, fmt.Errorf("%w: %s", dues.ErrEnrollmentNotFound, enrollmentID)
	}
	return e, nil
}

func (m *Memory) ActiveEnrollments(_ context.Context) ([]dues.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []dues.Enrollment
	for _, e := range m.enrollments {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Payments(_ context.Context, enrollmentID string) ([]dues.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []dues.PaymentRecord
	for _, p := range m.payments[enrollmentID] {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) Payment(_ context.Context, enrollmentID, paymentID string) (dues.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[enrollmentID][paymentID]
	if !ok {
		return dues.PaymentRecord{}, fmt.Errorf("%w: %s", dues.ErrPaymentNotFound, paymentID)
	}
	return p, nil
}

// Apply commits the batch atomically: every write is validated before any
// state changes, so a rejected batch leaves the store untouched.
func (m *Memory) Apply(_ context.Context, batch []dues.Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ApplyErr != nil {
		err := m.ApplyErr
		m.ApplyErr = nil
		return err
	}

	// Validation pass (atomic check). staged mirrors the unique index:
	// a month claimed earlier in the same batch conflicts too, unless it
	// is the same record being re-put.
	staged := make(map[string]map[dues.MonthKey]string)
	for _, w := range batch {
		switch w := w.(type) {
		case dues.PutPayment:
			for id, p := range m.payments[w.EnrollmentID] {
				if p.Month == w.Record.Month && id != w.Record.ID {
					return fmt.Errorf("%w: %s", dues.ErrDuplicateMonth, w.Record.Month)
				}
			}
			if id, ok := staged[w.EnrollmentID][w.Record.Month]; ok && id != w.Record.ID {
				return fmt.Errorf("%w: %s", dues.ErrDuplicateMonth, w.Record.Month)
			}
			if staged[w.EnrollmentID] == nil {
				staged[w.EnrollmentID] = make(map[dues.MonthKey]string)
			}
			staged[w.EnrollmentID][w.Record.Month] = w.Record.ID
		case dues.UpdateStatus:
			if _, ok := m.payments[w.EnrollmentID][w.PaymentID]; !ok {
				return fmt.Errorf("%w: %s", dues.ErrPaymentNotFound, w.PaymentID)
			}
		case dues.SetSyncMarker:
			// always valid
		default:
			return fmt.Errorf("unknown write type %T", w)
		}
	}

	// Mutation pass (atomic write)
	for _, w := range batch {
		switch w := w.(type) {
		case dues.PutPayment:
			if m.payments[w.EnrollmentID] == nil {
				m.payments[w.EnrollmentID] = make(map[string]dues.PaymentRecord)
			}
			m.payments[w.EnrollmentID][w.Record.ID] = w.Record
		case dues.UpdateStatus:
			p := m.payments[w.EnrollmentID][w.PaymentID]
			p.Status = w.Status
			if w.Status != dues.StatusPaid {
				p.PaymentDate = nil
			}
			m.payments[w.EnrollmentID][w.PaymentID] = p
		case dues.SetSyncMarker:
			m.marker = dues.SyncMarker{Date: w.Date, Created: w.Created, Promoted: w.Promoted}
		}
	}
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, enrollmentID, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[enrollmentID][paymentID]; !ok {
		return fmt.Errorf("%w: %s", dues.ErrPaymentNotFound, paymentID)
	}
	delete(m.payments[enrollmentID], paymentID)
	return nil
}

func (m *Memory) SyncMarker(_ context.Context) (dues.SyncMarker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marker, nil
}

// Compile-time check
var _ dues.Store = (*Memory)(nil)
