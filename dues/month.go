/*
month.go - MonthKey arithmetic and the engine clock

PURPOSE:
  A MonthKey identifies one calendar month in canonical "YYYY-MM" form.
  Every invariant in this package is keyed on it: obligations are generated
  per month, payment records are unique per (enrollment, month), and status
  classification compares months against "now".

DESIGN PRINCIPLES:
  1. Plain value: MonthKey is a comparable string, safe as a map key and
     as a storage key. It is never a wrapper around time.Time.
  2. Total order: (year, month) lexicographic order coincides with the
     string order of the canonical form, but Compare parses anyway so a
     malformed key never silently sorts.
  3. Explicit clock: "the current month" is derived from a Clock so tests
     can pin time. Nothing in this package calls time.Now directly except
     SystemClock.

USAGE:
  m, err := dues.ParseMonthKey("2024-11")
  next := m.AddMonths(2)              // "2025-01"
  dues.CurrentMonth(clock)            // MonthKey for now

SEE ALSO:
  - generate.go: walks MonthKeys from a start month to "now"
  - reconcile.go: classifies months against the current MonthKey
*/
package dues

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH KEY - Canonical "YYYY-MM" calendar month
// =============================================================================

// MonthKey is a calendar month in canonical "YYYY-MM" form.
// It is a plain comparable value, usable directly as a map or storage key.
type MonthKey string

const monthKeyLayout = "2006-01"

// NewMonthKey builds a MonthKey from a year and month.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// ParseMonthKey validates a "YYYY-MM" string and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-1", s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	// Re-render so "2024-1" style inputs never leak through.
	return NewMonthKey(t.Year(), t.Month()), nil
}

// MonthOf returns the MonthKey containing the given instant.
func MonthOf(t time.Time) MonthKey {
	return NewMonthKey(t.Year(), t.Month())
}

// Year returns the calendar year of the key. Zero for malformed keys.
func (m MonthKey) Year() int {
	y, _, ok := m.split()
	if !ok {
		return 0
	}
	return y
}

// Month returns the calendar month of the key. Zero for malformed keys.
func (m MonthKey) Month() time.Month {
	_, mo, ok := m.split()
	if !ok {
		return 0
	}
	return mo
}

// Time returns midnight UTC on the first day of the month.
func (m MonthKey) Time() time.Time {
	y, mo, ok := m.split()
	if !ok {
		return time.Time{}
	}
	return time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the key offset by n whole months, carrying across year
// boundaries in both directions: "2024-11" + 2 = "2025-01", "2024-01" - 1
// = "2023-12". n may be zero or negative.
func (m MonthKey) AddMonths(n int) MonthKey {
	y, mo, ok := m.split()
	if !ok {
		return m
	}
	// time.Date normalizes out-of-range months, which is exactly the
	// carry behavior we want. Day 1 avoids end-of-month normalization.
	t := time.Date(y, mo+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return NewMonthKey(t.Year(), t.Month())
}

// Next returns the following month.
func (m MonthKey) Next() MonthKey { return m.AddMonths(1) }

func (m MonthKey) split() (int, time.Month, bool) {
	t, err := time.Parse(monthKeyLayout, string(m))
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}

// =============================================================================
// ORDERING
// =============================================================================

// Compare orders two keys by (year, month): -1 if a < b, 0 if equal, +1 if
// a > b. Malformed keys sort before valid ones.
func Compare(a, b MonthKey) int {
	at, bt := a.Time(), b.Time()
	switch {
	case at.Before(bt):
		return -1
	case at.After(bt):
		return 1
	default:
		return 0
	}
}

func (m MonthKey) Before(other MonthKey) bool { return Compare(m, other) < 0 }
func (m MonthKey) After(other MonthKey) bool  { return Compare(m, other) > 0 }

// =============================================================================
// CLOCK - Explicit time source
// =============================================================================

// Clock supplies "now" to the engine so tests can pin the current month.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// CurrentMonth returns the MonthKey for the clock's current instant.
func CurrentMonth(clock Clock) MonthKey {
	return MonthOf(clock.Now())
}

// =============================================================================
// FORMATTING - Presentational only, no invariants
// =============================================================================

// Locale selects the language for human-readable month labels.
type Locale string

const (
	LocaleFR Locale = "fr" // the original deployment is French
	LocaleEN Locale = "en"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Format renders a human-readable label, e.g. "juin 2024" / "June 2024".
// Malformed keys render as-is.
func Format(m MonthKey, locale Locale) string {
	y, mo, ok := m.split()
	if !ok {
		return string(m)
	}
	if locale == LocaleFR {
		return fmt.Sprintf("%s %d", frenchMonths[mo-1], y)
	}
	return fmt.Sprintf("%s %d", mo.String(), y)
}
