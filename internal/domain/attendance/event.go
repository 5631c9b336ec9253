// Package attendance contains the domain model for raw attendance events and
// the aggregation engine that tallies them. This is a pure domain layer with
// zero external dependencies.
package attendance

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for attendance package.
var (
	ErrInvalidStudentID  = errors.New("attendance: invalid student ID")
	ErrInvalidTurmaID    = errors.New("attendance: invalid turma ID")
	ErrInvalidActivityID = errors.New("attendance: invalid activity ID")
	ErrZeroDate          = errors.New("attendance: event date is required")
)

// Status is the closed set of attendance outcomes. The legacy store persisted
// single-letter codes (P/F/J/V1/V2); the enum keeps those as wire codes so
// existing rows remain readable.
type Status string

const (
	// StatusPresent - student attended the activity.
	StatusPresent Status = "P"

	// StatusAbsent - student missed the activity without justification.
	StatusAbsent Status = "F"

	// StatusJustifiedAbsence - student missed the activity with justification.
	StatusJustifiedAbsence Status = "J"

	// StatusVolunteerExtra - student attended in an extra volunteer role.
	StatusVolunteerExtra Status = "V1"

	// StatusVolunteerSimple - student attended in a simple volunteer role.
	StatusVolunteerSimple Status = "V2"
)

// allStatuses enumerates the closed set; used for validation and iteration.
var allStatuses = []Status{
	StatusPresent,
	StatusAbsent,
	StatusJustifiedAbsence,
	StatusVolunteerExtra,
	StatusVolunteerSimple,
}

// IsValid reports whether s belongs to the closed status set.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusJustifiedAbsence,
		StatusVolunteerExtra, StatusVolunteerSimple:
		return true
	}
	return false
}

// String returns the wire code of the status.
func (s Status) String() string {
	return string(s)
}

// Label returns the display label used by report rows.
func (s Status) Label() string {
	switch s {
	case StatusPresent:
		return "Participante"
	case StatusAbsent:
		return "Falta"
	case StatusJustifiedAbsence:
		return "Falta Justificada"
	case StatusVolunteerExtra:
		return "Voluntário Extra"
	case StatusVolunteerSimple:
		return "Voluntário"
	default:
		return string(s)
	}
}

// IsPresence reports whether the status counts as physical presence.
// Volunteer acts are presences: the student was at the activity, in a role.
func (s Status) IsPresence() bool {
	switch s {
	case StatusPresent, StatusVolunteerExtra, StatusVolunteerSimple:
		return true
	}
	return false
}

// ParseStatus parses a legacy wire code. The boolean is false for codes
// outside the closed set; aggregation turns those into warnings, never errors.
func ParseStatus(code string) (Status, bool) {
	s := Status(code)
	return s, s.IsValid()
}

// AllStatuses returns the closed status set in declaration order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Event is one attendance outcome for one student at one activity occurrence.
// The tuple (StudentID, TurmaID, ActivityID, Date) identifies it uniquely;
// the store upserts on that key, so the engine never sees duplicates.
type Event struct {
	StudentID  int64
	TurmaID    int64
	ActivityID int64
	Date       time.Time
	Status     Status
}

// Key returns a stable textual identity for warnings and logs.
func (e Event) Key() string {
	return fmt.Sprintf("student=%d turma=%d activity=%d date=%s",
		e.StudentID, e.TurmaID, e.ActivityID, e.Date.Format("2006-01-02"))
}

// Validate checks structural integrity of the event. Status validity is
// deliberately not checked here; unknown statuses flow to the aggregation
// warning channel instead of failing the whole batch.
func (e Event) Validate() error {
	if e.StudentID <= 0 {
		return ErrInvalidStudentID
	}
	if e.TurmaID <= 0 {
		return ErrInvalidTurmaID
	}
	if e.ActivityID <= 0 {
		return ErrInvalidActivityID
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// StatusCounts tallies events per status for one grouping key.
type StatusCounts struct {
	Present         int
	Absent          int
	Justified       int
	VolunteerExtra  int
	VolunteerSimple int
}

// Add increments the counter for the given status. Unknown statuses are
// ignored; callers surface them through the warning channel.
func (c *StatusCounts) Add(s Status) {
	switch s {
	case StatusPresent:
		c.Present++
	case StatusAbsent:
		c.Absent++
	case StatusJustifiedAbsence:
		c.Justified++
	case StatusVolunteerExtra:
		c.VolunteerExtra++
	case StatusVolunteerSimple:
		c.VolunteerSimple++
	}
}

// Merge adds another tally into this one.
func (c *StatusCounts) Merge(other StatusCounts) {
	c.Present += other.Present
	c.Absent += other.Absent
	c.Justified += other.Justified
	c.VolunteerExtra += other.VolunteerExtra
	c.VolunteerSimple += other.VolunteerSimple
}

// Total returns the number of counted events (the "convocados" of a group).
func (c StatusCounts) Total() int {
	return c.Present + c.Absent + c.Justified + c.VolunteerExtra + c.VolunteerSimple
}

// Presences returns the number of events that count as physical presence.
// JustifiedAbsence remains an absence for the percentage but is reported
// separately by the frequency views.
func (c StatusCounts) Presences() int {
	return c.Present + c.VolunteerExtra + c.VolunteerSimple
}

// Absences returns the number of absence events, justified or not.
func (c StatusCounts) Absences() int {
	return c.Absent + c.Justified
}

// VolunteerActs returns the number of volunteer presences.
func (c StatusCounts) VolunteerActs() int {
	return c.VolunteerExtra + c.VolunteerSimple
}
