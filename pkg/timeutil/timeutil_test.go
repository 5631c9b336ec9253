package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UsesSaoPauloZone(t *testing.T) {
	d := Date(2025, 10, 5)

	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.October, d.Month())
	assert.Equal(t, 5, d.Day())

	_, offset := d.Zone()
	assert.Equal(t, -3*60*60, offset)
}

func TestStartAndEndOfDay(t *testing.T) {
	// 01:30 UTC on Oct 6 is still 22:30 on Oct 5 in São Paulo.
	moment := time.Date(2025, 10, 6, 1, 30, 0, 0, time.UTC)

	start := StartOfDay(moment)
	end := EndOfDay(moment)

	assert.Equal(t, Date(2025, 10, 5), start)
	assert.Equal(t, 5, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.True(t, end.After(start))
}

func TestStartAndEndOfMonth(t *testing.T) {
	moment := Date(2025, 2, 14)

	assert.Equal(t, Date(2025, 2, 1), StartOfMonth(moment))
	assert.Equal(t, 28, EndOfMonth(moment).Day())
}

func TestMonthWindow_HalfOpenAndRollsOver(t *testing.T) {
	start, end := MonthWindow(Date(2025, 12, 25))

	assert.Equal(t, Date(2025, 12, 1), start)
	assert.Equal(t, Date(2026, 1, 1), end)
}

func TestIsSameDay_AcrossZones(t *testing.T) {
	// Both instants fall on Oct 5 in São Paulo even though one is Oct 6 UTC.
	a := time.Date(2025, 10, 6, 1, 0, 0, 0, time.UTC)
	b := Date(2025, 10, 5)

	assert.True(t, IsSameDay(a, b))
	assert.False(t, IsSameDay(b, Date(2025, 10, 6)))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 2, DaysBetween(Date(2026, 1, 12), Date(2026, 1, 14)))
	assert.Equal(t, -1, DaysBetween(Date(2026, 2, 20), Date(2026, 2, 19)))
	assert.Equal(t, 0, DaysBetween(Date(2025, 10, 5), Date(2025, 10, 5).Add(23*time.Hour)))
}

func TestParseAndFormatDate(t *testing.T) {
	parsed, err := ParseDate("2025-10-05")
	require.NoError(t, err)
	assert.Equal(t, Date(2025, 10, 5), parsed)
	assert.Equal(t, "2025-10-05", FormatDate(parsed))

	_, err = ParseDate("05/10/2025")
	assert.Error(t, err)
}
