package attendance

import (
	"fmt"
	"time"
)

// Warning reports an event the aggregation skipped instead of counting.
// The engine never aborts a whole batch over one malformed record; callers
// log or surface the warning list for observability.
type Warning struct {
	EventKey string
	Reason   string
}

// String returns the warning in a loggable form.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.EventKey, w.Reason)
}

// Aggregate groups events by the given key function and tallies status counts
// per group. Events with a status outside the closed set, or failing
// structural validation, are skipped and reported in the warning list.
//
// Counts are deterministic for equal multisets of events regardless of input
// order. No ordering is applied to the result; report assembly sorts rows
// downstream. Empty input yields an empty, non-nil map.
func Aggregate[K comparable](events []Event, key func(Event) K) (map[K]StatusCounts, []Warning) {
	groups := make(map[K]StatusCounts, len(events))
	var warnings []Warning

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			warnings = append(warnings, Warning{EventKey: ev.Key(), Reason: err.Error()})
			continue
		}
		if !ev.Status.IsValid() {
			warnings = append(warnings, Warning{
				EventKey: ev.Key(),
				Reason:   fmt.Sprintf("unknown status code %q", string(ev.Status)),
			})
			continue
		}

		k := key(ev)
		counts := groups[k]
		counts.Add(ev.Status)
		groups[k] = counts
	}

	return groups, warnings
}

// ByStudent groups events by student ID.
func ByStudent(e Event) int64 {
	return e.StudentID
}

// ByActivity groups events by activity ID.
func ByActivity(e Event) int64 {
	return e.ActivityID
}

// StudentMonth is the grouping key of the frequency report: one row per
// student per calendar month.
type StudentMonth struct {
	StudentID int64
	Month     time.Month
	Year      int
}

// ByStudentMonth groups events by student and calendar month of the event date.
func ByStudentMonth(e Event) StudentMonth {
	return StudentMonth{
		StudentID: e.StudentID,
		Month:     e.Date.Month(),
		Year:      e.Date.Year(),
	}
}
