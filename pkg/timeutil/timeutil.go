// Package timeutil provides timezone utilities for the São Paulo timezone the
// legacy deployment runs in. Handles day boundaries, month windows, and
// whole-day arithmetic used by attendance date handling.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// SaoPauloTZ is the São Paulo timezone (UTC-3, no DST).
// Brazil abolished DST in 2019, so this is constant year-round.
var SaoPauloTZ = time.FixedZone("America/Sao_Paulo", -3*60*60)

// Now returns the current time in São Paulo timezone.
func Now() time.Time {
	return time.Now().In(SaoPauloTZ)
}

// ToSaoPaulo converts a time to São Paulo timezone.
func ToSaoPaulo(t time.Time) time.Time {
	return t.In(SaoPauloTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in São Paulo timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, SaoPauloTZ)
}

// StartOfDay returns the start of the day (00:00:00) in São Paulo timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToSaoPaulo(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, SaoPauloTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in São Paulo timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToSaoPaulo(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, SaoPauloTZ)
}

// StartOfMonth returns the start of the month in São Paulo timezone.
func StartOfMonth(t time.Time) time.Time {
	local := ToSaoPaulo(t)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, SaoPauloTZ)
}

// EndOfMonth returns the end of the month in São Paulo timezone.
func EndOfMonth(t time.Time) time.Time {
	start := StartOfMonth(t)
	return EndOfDay(start.AddDate(0, 1, -1))
}

// MonthWindow returns the half-open [start, end) window of the month
// containing t, in São Paulo timezone.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	start := StartOfMonth(t)
	return start, start.AddDate(0, 1, 0)
}

// IsSameDay reports whether two times fall on the same São Paulo calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToSaoPaulo(t1), ToSaoPaulo(t2)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// DaysBetween returns the whole-day difference t2 - t1 at day precision, in
// São Paulo timezone. Negative when t2 precedes t1.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	return int(b.Sub(a).Hours() / 24)
}

// ParseDate parses an ISO "2006-01-02" date in São Paulo timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, SaoPauloTZ)
}

// FormatDate formats a time as an ISO "2006-01-02" date in São Paulo timezone.
func FormatDate(t time.Time) string {
	return ToSaoPaulo(t).Format("2006-01-02")
}
