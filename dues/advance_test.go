package dues_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dues-engine/dues"
)

// =============================================================================
// ADVANCE BATCH - ALL-OR-NOTHING PRE-PAYMENT
// =============================================================================

func TestCreateAdvanceBatch_Success(t *testing.T) {
	// GIVEN: An enrollment with no records for the target months
	// WHEN: Creating a 3-month batch starting at the current month
	// THEN: Three paid records, consecutive months, payment date set

	engine, mem := newTestEngine(fixedClock(2024, time.September, 15))
	mem.SaveEnrollment(judoEnrollment())

	records, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "2024-09", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	want := []dues.MonthKey{"2024-09", "2024-10", "2024-11"}
	for i, rec := range records {
		assert.Equal(t, want[i], rec.Month)
		assert.Equal(t, dues.StatusPaid, rec.Status)
		assert.True(t, rec.Amount.Equal(decimal.NewFromInt(200)))
		require.NotNil(t, rec.PaymentDate)
		assert.False(t, rec.AutoCreated)
	}

	payments, err := mem.Payments(context.Background(), "enr-judo")
	require.NoError(t, err)
	assert.Len(t, payments, 3)
}

func TestCreateAdvanceBatch_CrossesYearBoundary(t *testing.T) {
	engine, mem := newTestEngine(fixedClock(2024, time.November, 1))
	mem.SaveEnrollment(judoEnrollment())

	records, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "2024-11", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, dues.MonthKey("2025-01"), records[2].Month)
}

func TestCreateAdvanceBatch_ConflictRejectsWholeBatch(t *testing.T) {
	// GIVEN: A record already exists for the third target month
	// WHEN: Requesting a 5-month batch spanning it
	// THEN: The whole request is rejected naming the month; nothing written

	engine, mem := newTestEngine(fixedClock(2024, time.October, 1))
	mem.SaveEnrollment(judoEnrollment())
	seedRecord(t, mem, "enr-judo", dues.PaymentRecord{
		ID:     "pay-dec",
		Month:  "2024-12",
		Amount: decimal.NewFromInt(200),
		Status: dues.StatusPending,
	})

	_, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "2024-10", 5)
	require.Error(t, err)

	var dup *dues.DuplicateMonthError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []dues.MonthKey{"2024-12"}, dup.Months)
	assert.ErrorIs(t, err, dues.ErrDuplicateMonth)

	// No partial batch: only the pre-existing record remains.
	payments, err := mem.Payments(context.Background(), "enr-judo")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "pay-dec", payments[0].ID)
}

func TestCreateAdvanceBatch_AllConflictsNamed(t *testing.T) {
	// GIVEN: Records for two of the target months
	// WHEN: Requesting a batch spanning both
	// THEN: The rejection names both conflicting months

	engine, mem := newTestEngine(fixedClock(2024, time.October, 1))
	mem.SaveEnrollment(judoEnrollment())
	for _, m := range []dues.MonthKey{"2024-11", "2025-01"} {
		seedRecord(t, mem, "enr-judo", dues.PaymentRecord{
			ID:     "pay-" + string(m),
			Month:  m,
			Amount: decimal.NewFromInt(200),
			Status: dues.StatusPaid,
		})
	}

	_, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "2024-10", 4)
	var dup *dues.DuplicateMonthError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []dues.MonthKey{"2024-11", "2025-01"}, dup.Months)
}

func TestCreateAdvanceBatch_CountBounds(t *testing.T) {
	engine, mem := newTestEngine(fixedClock(2024, time.October, 1))
	mem.SaveEnrollment(judoEnrollment())

	for _, count := range []int{0, -1, dues.MaxAdvanceMonths + 1} {
		_, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "2024-10", count)
		assert.ErrorIs(t, err, dues.ErrCountOutOfRange, "count %d", count)
	}

	// The upper bound itself is allowed.
	records, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "2024-10", dues.MaxAdvanceMonths)
	require.NoError(t, err)
	assert.Len(t, records, dues.MaxAdvanceMonths)
}

func TestCreateAdvanceBatch_BadStartMonth(t *testing.T) {
	engine, mem := newTestEngine(fixedClock(2024, time.October, 1))
	mem.SaveEnrollment(judoEnrollment())

	_, err := engine.CreateAdvanceBatch(context.Background(), "enr-judo", "October", 2)
	assert.ErrorIs(t, err, dues.ErrInvalidMonth)
}

func TestCreateAdvanceBatch_UnknownEnrollment(t *testing.T) {
	engine, _ := newTestEngine(fixedClock(2024, time.October, 1))
	_, err := engine.CreateAdvanceBatch(context.Background(), "nope", "2024-10", 2)
	assert.ErrorIs(t, err, dues.ErrEnrollmentNotFound)
}
