// Package catalog contains read-only entities the engine consumes from the
// course catalog: courses, turmas (cohorts), students, and activities.
// Catalog CRUD lives outside the engine; this package only models lookups.
package catalog

import (
	"strings"
	"time"

	"github.com/presenca-hub/presenca-engine/pkg/timeutil"
)

// Course is a course offering. Turmas are scheduled instances of a course.
type Course struct {
	ID   int64
	Name string
}

// TurmaStatus is the lifecycle status of a turma.
type TurmaStatus string

const (
	TurmaStatusPlanned   TurmaStatus = "planejada"
	TurmaStatusActive    TurmaStatus = "em_andamento"
	TurmaStatusFinished  TurmaStatus = "concluida"
	TurmaStatusCancelled TurmaStatus = "cancelada"
)

// Turma is a scheduled class group of a course.
type Turma struct {
	ID       int64
	CourseID int64
	Name     string
	Status   TurmaStatus
}

// IsActive reports whether the turma is currently running.
func (t Turma) IsActive() bool {
	return t.Status == TurmaStatusActive
}

// Student is a catalog student. Enrollment into turmas is resolved by the
// catalog lookup, not stored on the entity.
type Student struct {
	ID   int64
	Name string
}

// ActivityStatus is the lifecycle status of an activity.
type ActivityStatus string

const (
	ActivityStatusScheduled ActivityStatus = "agendada"
	ActivityStatusRealized  ActivityStatus = "realizada"
	ActivityStatusCancelled ActivityStatus = "cancelada"
)

// Activity is a schedulable event against which attendance is recorded.
// DataInicio/DataFim are the scheduled window; DataRealFim is the realized
// end date, nil while the activity is still open.
type Activity struct {
	ID          int64
	TurmaID     int64
	Name        string
	Type        string
	Status      ActivityStatus
	DataInicio  time.Time
	DataFim     time.Time
	DataRealFim *time.Time
}

// NameFold returns the case-folded name used for case-insensitive ordering.
func (a Activity) NameFold() string {
	return strings.ToLower(a.Name)
}

// AtrasoDias returns the positive whole-day lateness of the realized end
// against the scheduled end, or nil when the activity finished on time,
// early, or is still open.
func (a Activity) AtrasoDias() *int {
	if a.DataRealFim == nil {
		return nil
	}
	days := timeutil.DaysBetween(a.DataFim, *a.DataRealFim)
	if days <= 0 {
		return nil
	}
	return &days
}

// AdiantamentoDias returns the positive whole-day size of an inverted
// scheduled window (scheduled end before scheduled start), signaling an
// early-closed or misregistered period. Nil for a well-formed window.
func (a Activity) AdiantamentoDias() *int {
	days := timeutil.DaysBetween(a.DataFim, a.DataInicio)
	if days <= 0 {
		return nil
	}
	return &days
}
