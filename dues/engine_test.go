/*
engine_test.go - Executable specification of the engine's core behaviors

ORGANIZATION:
  1. Obligation generation - the derived sequence of owed months
  2. Ledger reconciliation - record-backed vs derived entries
  3. Sync pass - materialization, promotion, gating, atomicity

READING THESE TESTS:
  Each test has GIVEN/WHEN/THEN comments explaining the scenario.
  Shared fixtures at the top are reused by advance_test.go and
  manual_test.go.
*/
package dues_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dues-engine/dues"
	"github.com/warp/dues-engine/dues/store"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

// fixedClock pins "now" to noon UTC on the given day.
func fixedClock(year int, month time.Month, day int) dues.ClockFunc {
	return dues.ClockFunc(func() time.Time {
		return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	})
}

func newTestEngine(clock dues.Clock) (*dues.Engine, *store.Memory) {
	mem := store.NewMemory()
	engine := dues.NewEngine(mem)
	engine.Clock = clock
	return engine, mem
}

// judoEnrollment: 200/month since June 2024.
func judoEnrollment() dues.Enrollment {
	return dues.Enrollment{
		ID:         "enr-judo",
		MemberID:   "mem-1",
		ActivityID: "act-judo",
		Fee:        decimal.NewFromInt(200),
		StartDate:  time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
		Active:     true,
	}
}

func seedRecord(t *testing.T, mem *store.Memory, enrollmentID string, rec dues.PaymentRecord) {
	t.Helper()
	err := mem.Apply(context.Background(), []dues.Write{
		dues.PutPayment{EnrollmentID: enrollmentID, Record: rec},
	})
	require.NoError(t, err)
}

func paidAt(ts time.Time) *time.Time { return &ts }

// =============================================================================
// OBLIGATION GENERATION
// =============================================================================

func TestObligations_FromStartThroughCurrent(t *testing.T) {
	// GIVEN: An enrollment starting January 2024
	// WHEN: Generating as of April 2024
	// THEN: Exactly 2024-01 .. 2024-04, ascending, at the current fee

	e := judoEnrollment()
	e.StartDate = time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	obs := dues.Obligations(e, "2024-04")

	require.Len(t, obs, 4)
	want := []dues.MonthKey{"2024-01", "2024-02", "2024-03", "2024-04"}
	for i, ob := range obs {
		assert.Equal(t, want[i], ob.Month)
		assert.Equal(t, e.ID, ob.EnrollmentID)
		assert.True(t, ob.ExpectedAmount.Equal(decimal.NewFromInt(200)))
	}
}

func TestObligations_StartAfterCurrent_Empty(t *testing.T) {
	// GIVEN: An enrollment starting in the future
	// WHEN: Generating as of an earlier month
	// THEN: No obligations

	e := judoEnrollment()
	obs := dues.Obligations(e, "2024-05")
	assert.Empty(t, obs)
}

func TestObligations_Deterministic(t *testing.T) {
	// Two generations for the same inputs are structurally identical.
	e := judoEnrollment()
	assert.Equal(t, dues.Obligations(e, "2024-09"), dues.Obligations(e, "2024-09"))
}

func TestMissingStatus_Boundary(t *testing.T) {
	assert.Equal(t, dues.StatusOverdue, dues.MissingStatus("2024-08", "2024-09"))
	assert.Equal(t, dues.StatusPending, dues.MissingStatus("2024-09", "2024-09"))
}

// =============================================================================
// LEDGER RECONCILIATION
// =============================================================================

func TestBuildLedger_MissingMonthsDerived(t *testing.T) {
	// GIVEN: Fee 200, start June 2024, no records, current month September
	// WHEN: Building the ledger
	// THEN: 3 derived overdue months + 1 derived pending month

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())

	entries, err := engine.BuildLedger(context.Background(), "enr-judo")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	for i, entry := range entries[:3] {
		assert.Equal(t, dues.StatusOverdue, entry.Status, "month %d should be overdue", i)
		assert.True(t, entry.AutoDerived)
		assert.Nil(t, entry.Record)
	}
	assert.Equal(t, dues.MonthKey("2024-09"), entries[3].Month)
	assert.Equal(t, dues.StatusPending, entries[3].Status)
	assert.True(t, entries[3].AutoDerived)

	totals := dues.Totals(entries)
	assert.True(t, totals.Overdue.Equal(decimal.NewFromInt(600)), "overdue total: %s", totals.Overdue)
	assert.True(t, totals.Pending.Equal(decimal.NewFromInt(200)), "pending total: %s", totals.Pending)
	assert.True(t, totals.Expected.Equal(decimal.NewFromInt(800)))
}

func TestBuildLedger_RecordBackedEntryWins(t *testing.T) {
	// GIVEN: A paid record for June at a historical amount of 150
	// WHEN: Building the ledger in September
	// THEN: June shows the record's own status and amount, not the fee

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())
	seedRecord(t, mem, "enr-judo", dues.PaymentRecord{
		ID:          "pay-june",
		Month:       "2024-06",
		Amount:      decimal.NewFromInt(150),
		Status:      dues.StatusPaid,
		PaymentDate: paidAt(time.Date(2024, time.June, 12, 0, 0, 0, 0, time.UTC)),
	})

	entries, err := engine.BuildLedger(context.Background(), "enr-judo")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	june := entries[0]
	assert.Equal(t, dues.StatusPaid, june.Status)
	assert.True(t, june.ExpectedAmount.Equal(decimal.NewFromInt(150)))
	assert.False(t, june.AutoDerived)
	require.NotNil(t, june.Record)
	assert.Equal(t, "pay-june", june.Record.ID)

	assert.Equal(t, "juin 2024", june.Label)
}

func TestBuildLedgerWithUpcoming_PreviewMonths(t *testing.T) {
	// GIVEN: An advance paid record for October (next month)
	// WHEN: Building the ledger with 2 preview months in September
	// THEN: October surfaces its record, November is tagged not-yet-due

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())
	seedRecord(t, mem, "enr-judo", dues.PaymentRecord{
		ID:          "pay-oct",
		Month:       "2024-10",
		Amount:      decimal.NewFromInt(200),
		Status:      dues.StatusPaid,
		PaymentDate: paidAt(time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)),
	})

	entries, err := engine.BuildLedgerWithUpcoming(context.Background(), "enr-judo", 2)
	require.NoError(t, err)
	require.Len(t, entries, 6) // 4 owed + 2 preview

	oct, nov := entries[4], entries[5]
	assert.Equal(t, dues.MonthKey("2024-10"), oct.Month)
	assert.Equal(t, dues.StatusPaid, oct.Status)
	require.NotNil(t, oct.Record)

	assert.Equal(t, dues.MonthKey("2024-11"), nov.Month)
	assert.Equal(t, dues.StatusNotYetDue, nov.Status)
	assert.Nil(t, nov.Record)
}

func TestBuildLedger_UnknownEnrollment(t *testing.T) {
	engine, _ := newTestEngine(fixedClock(2024, time.September, 15))
	_, err := engine.BuildLedger(context.Background(), "nope")
	assert.ErrorIs(t, err, dues.ErrEnrollmentNotFound)
}

// =============================================================================
// SYNC PASS
// =============================================================================

func TestRunSync_MaterializesMissingMonths(t *testing.T) {
	// GIVEN: Fee 200, start June 2024, no records, current month September
	// WHEN: Running the sync pass
	// THEN: 4 records created, exactly one per month, past months overdue

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())

	report, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 0, report.Promoted)
	assert.False(t, report.Skipped)

	payments, err := mem.Payments(context.Background(), "enr-judo")
	require.NoError(t, err)
	require.Len(t, payments, 4)

	byMonth := map[dues.MonthKey]dues.PaymentRecord{}
	for _, p := range payments {
		_, seen := byMonth[p.Month]
		require.False(t, seen, "second record for %s", p.Month)
		byMonth[p.Month] = p
		assert.True(t, p.AutoCreated)
		assert.Nil(t, p.PaymentDate)
	}
	assert.Equal(t, dues.StatusOverdue, byMonth["2024-06"].Status)
	assert.Equal(t, dues.StatusOverdue, byMonth["2024-08"].Status)
	assert.Equal(t, dues.StatusPending, byMonth["2024-09"].Status)

	// The marker records the run date and its counts.
	marker, err := mem.SyncMarker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dues.SyncMarker{Date: "2024-09-15", Created: 4, Promoted: 0}, marker)
}

func TestRunSync_SecondRunSameDay_Gated(t *testing.T) {
	// GIVEN: A sync pass already ran today
	// WHEN: Triggering again without force
	// THEN: The pass is skipped entirely

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())

	_, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)

	report, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, 0, report.Created)
}

func TestRunSync_ForcedRerun_Idempotent(t *testing.T) {
	// GIVEN: A sync pass already ran today
	// WHEN: Forcing a second pass
	// THEN: The pass runs but stages nothing

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())

	_, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)

	report, err := engine.RunSync(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Promoted)
}

func TestRunSync_NextDay_RunsAgain(t *testing.T) {
	// The gate is per calendar day, not per process lifetime.
	mem := store.NewMemory()
	mem.SaveEnrollment(judoEnrollment())

	day1 := dues.NewEngine(mem)
	day1.Clock = fixedClock(2024, time.September, 15)
	_, err := day1.RunSync(context.Background(), false)
	require.NoError(t, err)

	day2 := dues.NewEngine(mem)
	day2.Clock = fixedClock(2024, time.September, 16)
	report, err := day2.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 0, report.Created) // nothing new owed within the same month
}

func TestRunSync_PromotesStalePending(t *testing.T) {
	// GIVEN: A pending record whose month is now in the past
	// WHEN: Running the sync pass
	// THEN: The record is promoted to overdue

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	e := judoEnrollment()
	e.StartDate = time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)
	mem.SaveEnrollment(e)
	seedRecord(t, mem, "enr-judo", dues.PaymentRecord{
		ID:     "pay-aug",
		Month:  "2024-08",
		Amount: decimal.NewFromInt(200),
		Status: dues.StatusPending,
	})

	report, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, 1, report.Created) // September

	rec, err := mem.Payment(context.Background(), "enr-judo", "pay-aug")
	require.NoError(t, err)
	assert.Equal(t, dues.StatusOverdue, rec.Status)
}

func TestRunSync_PaidNeverTouched(t *testing.T) {
	// GIVEN: A paid record for a past month
	// WHEN: Running the sync pass
	// THEN: The record keeps its status and payment date

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	e := judoEnrollment()
	e.StartDate = time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)
	mem.SaveEnrollment(e)
	when := time.Date(2024, time.August, 3, 0, 0, 0, 0, time.UTC)
	seedRecord(t, mem, "enr-judo", dues.PaymentRecord{
		ID:          "pay-aug",
		Month:       "2024-08",
		Amount:      decimal.NewFromInt(200),
		Status:      dues.StatusPaid,
		PaymentDate: paidAt(when),
	})

	report, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Promoted)

	rec, err := mem.Payment(context.Background(), "enr-judo", "pay-aug")
	require.NoError(t, err)
	assert.Equal(t, dues.StatusPaid, rec.Status)
	require.NotNil(t, rec.PaymentDate)
	assert.True(t, rec.PaymentDate.Equal(when))
}

func TestRunSync_DeletedRecordRecreatedNonPaid(t *testing.T) {
	// GIVEN: A synced roster where one past-month record was then deleted
	// WHEN: Forcing another pass
	// THEN: The month is recreated as a fresh overdue record, not paid

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())

	_, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)

	payments, err := mem.Payments(context.Background(), "enr-judo")
	require.NoError(t, err)
	var juneID string
	for _, p := range payments {
		if p.Month == "2024-06" {
			juneID = p.ID
		}
	}
	require.NotEmpty(t, juneID)
	require.NoError(t, mem.DeletePayment(context.Background(), "enr-judo", juneID))

	report, err := engine.RunSync(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	payments, err = mem.Payments(context.Background(), "enr-judo")
	require.NoError(t, err)
	for _, p := range payments {
		if p.Month == "2024-06" {
			assert.NotEqual(t, juneID, p.ID)
			assert.Equal(t, dues.StatusOverdue, p.Status)
			assert.True(t, p.AutoCreated)
		}
	}
}

func TestRunSync_FailedBatchLeavesMarkerUnchanged(t *testing.T) {
	// GIVEN: A store whose next batch write fails
	// WHEN: Running the sync pass
	// THEN: No records, no marker; the next trigger retries the full pass

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())
	mem.ApplyErr = errors.New("disk full")

	_, err := engine.RunSync(context.Background(), false)
	require.Error(t, err)
	assert.True(t, dues.IsRetryable(err))

	marker, err := mem.SyncMarker(context.Background())
	require.NoError(t, err)
	assert.Empty(t, marker.Date)
	payments, err := mem.Payments(context.Background(), "enr-judo")
	require.NoError(t, err)
	assert.Empty(t, payments)

	// The retry is not gated and completes the work.
	report, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created)
}

func TestRunSync_InactiveEnrollmentSkipped(t *testing.T) {
	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	e := judoEnrollment()
	e.Active = false
	mem.SaveEnrollment(e)

	report, err := engine.RunSync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
}
