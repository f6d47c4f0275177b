package dues_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/dues-engine/dues"
)

// =============================================================================
// MONTH ARITHMETIC
// =============================================================================

func TestMonthKey_AddMonths_CarriesAcrossYears(t *testing.T) {
	cases := []struct {
		start dues.MonthKey
		n     int
		want  dues.MonthKey
	}{
		{"2024-11", 2, "2025-01"},
		{"2024-01", -1, "2023-12"},
		{"2024-06", 0, "2024-06"},
		{"2024-06", 12, "2025-06"},
		{"2024-06", -18, "2022-12"},
		{"2024-12", 1, "2025-01"},
	}
	for _, c := range cases {
		got := c.start.AddMonths(c.n)
		if got != c.want {
			t.Errorf("%s + %d months: got %s, want %s", c.start, c.n, got, c.want)
		}
	}
}

func TestMonthKey_Next(t *testing.T) {
	if got := dues.MonthKey("2024-12").Next(); got != "2025-01" {
		t.Errorf("Next: got %s, want 2025-01", got)
	}
}

func TestParseMonthKey_Canonicalizes(t *testing.T) {
	// Single-digit month inputs are re-rendered in canonical form.
	m, err := dues.ParseMonthKey("2024-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != "2024-01" {
		t.Errorf("got %s, want 2024-01", m)
	}
}

func TestParseMonthKey_RejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "2024", "2024-13", "2024-00", "garbage", "06-2024"} {
		_, err := dues.ParseMonthKey(in)
		if !errors.Is(err, dues.ErrInvalidMonth) {
			t.Errorf("ParseMonthKey(%q): got %v, want ErrInvalidMonth", in, err)
		}
	}
}

func TestCompare_TotalOrder(t *testing.T) {
	if dues.Compare("2024-06", "2024-07") != -1 {
		t.Error("2024-06 should sort before 2024-07")
	}
	if dues.Compare("2025-01", "2024-12") != 1 {
		t.Error("2025-01 should sort after 2024-12")
	}
	if dues.Compare("2024-06", "2024-06") != 0 {
		t.Error("equal keys should compare 0")
	}
	if !dues.MonthKey("2024-06").Before("2024-07") {
		t.Error("Before failed")
	}
	if !dues.MonthKey("2024-07").After("2024-06") {
		t.Error("After failed")
	}
}

func TestMonthKey_Accessors(t *testing.T) {
	m := dues.NewMonthKey(2024, time.June)
	if m != "2024-06" {
		t.Fatalf("NewMonthKey: got %s", m)
	}
	if m.Year() != 2024 || m.Month() != time.June {
		t.Errorf("accessors: got %d/%v", m.Year(), m.Month())
	}
	want := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	if !m.Time().Equal(want) {
		t.Errorf("Time: got %v", m.Time())
	}
}

func TestMonthOf_And_CurrentMonth(t *testing.T) {
	instant := time.Date(2024, time.September, 15, 23, 59, 0, 0, time.UTC)
	if got := dues.MonthOf(instant); got != "2024-09" {
		t.Errorf("MonthOf: got %s, want 2024-09", got)
	}

	clock := dues.ClockFunc(func() time.Time { return instant })
	if got := dues.CurrentMonth(clock); got != "2024-09" {
		t.Errorf("CurrentMonth: got %s, want 2024-09", got)
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormat_Locales(t *testing.T) {
	if got := dues.Format("2024-06", dues.LocaleFR); got != "juin 2024" {
		t.Errorf("FR: got %q, want %q", got, "juin 2024")
	}
	if got := dues.Format("2024-06", dues.LocaleEN); got != "June 2024" {
		t.Errorf("EN: got %q, want %q", got, "June 2024")
	}
	// Malformed keys render as-is instead of panicking.
	if got := dues.Format("oops", dues.LocaleFR); got != "oops" {
		t.Errorf("malformed: got %q, want %q", got, "oops")
	}
}
