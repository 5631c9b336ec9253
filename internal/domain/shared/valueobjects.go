// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"math"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage represents a presence percentage in the range [0, 100],
// rounded to two decimal places.
type Percentage float64

// IsValid checks if the percentage is within the valid range.
func (p Percentage) IsValid() bool {
	return p >= 0 && p <= 100
}

// Float64 returns the underlying float64 value.
func (p Percentage) Float64() float64 {
	return float64(p)
}

// String returns the string representation with two decimals.
func (p Percentage) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}

// Meets reports whether the percentage reaches the given threshold.
func (p Percentage) Meets(threshold Percentage) bool {
	return p >= threshold
}

// NewPercentage computes numerator/denominator*100 rounded to two decimals.
// A zero denominator yields exactly 0 instead of an error or NaN; the legacy
// system treats "no qualifying activities" as zero presence.
func NewPercentage(numerator, denominator int) Percentage {
	if denominator <= 0 {
		return 0
	}
	raw := float64(numerator) / float64(denominator) * 100
	return Percentage(math.Round(raw*100) / 100)
}

// ═══════════════════════════════════════════════════════════════════════════
// MonthYear Value Object
// ═══════════════════════════════════════════════════════════════════════════

// MonthYear identifies a calendar month. It is the time window of a period.
type MonthYear struct {
	Month int
	Year  int
}

// IsValid checks month and year bounds.
func (m MonthYear) IsValid() bool {
	return m.Month >= 1 && m.Month <= 12 && m.Year >= 1900 && m.Year <= 9999
}

// String returns the "YYYY-MM" representation.
func (m MonthYear) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Start returns the first instant of the month in the given location.
func (m MonthYear) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, loc)
}

// End returns the first instant of the following month in the given location.
// The window is half-open: [Start, End).
func (m MonthYear) End(loc *time.Location) time.Time {
	return m.Start(loc).AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the month window.
func (m MonthYear) Contains(t time.Time) bool {
	return t.Year() == m.Year && int(t.Month()) == m.Month
}

// NewMonthYear creates a MonthYear with validation.
func NewMonthYear(month, year int) (MonthYear, error) {
	m := MonthYear{Month: month, Year: year}
	if !m.IsValid() {
		return MonthYear{}, NewDomainError("shared", "NewMonthYear", ErrValueOutOfRange, "invalid month/year")
	}
	return m, nil
}

// MonthYearOf returns the MonthYear containing the given time.
func MonthYearOf(t time.Time) MonthYear {
	return MonthYear{Month: int(t.Month()), Year: t.Year()}
}

// ═══════════════════════════════════════════════════════════════════════════
// DateRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateRange is an optional-bounded date interval used by report filters.
// A nil bound means "unbounded on that side".
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// Contains reports whether t falls inside the range (inclusive bounds,
// day precision on the upper bound).
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(endOfDay(*r.To)) {
		return false
	}
	return true
}

// Validate returns an error when both bounds are set and inverted.
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return NewDomainError("shared", "DateRange", ErrInvalidInput, "date_to precedes date_from")
	}
	return nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}
