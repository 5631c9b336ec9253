package attendance

import (
	"context"
	"time"
)

// InstructionRole is the role a student held while instructing an activity.
type InstructionRole string

const (
	RoleLeadInstructor      InstructionRole = "instrutor_chefe"
	RoleAssistantInstructor InstructionRole = "instrutor_auxiliar"
)

// IsValid reports whether the role belongs to the closed set.
func (r InstructionRole) IsValid() bool {
	return r == RoleLeadInstructor || r == RoleAssistantInstructor
}

// Label returns the display label used by the student history report.
func (r InstructionRole) Label() string {
	switch r {
	case RoleLeadInstructor:
		return "Instrutor Chefe"
	case RoleAssistantInstructor:
		return "Instrutor Auxiliar"
	default:
		return string(r)
	}
}

// InstructionAssignment records that a student instructed an activity.
// These feed the per-student history timeline alongside attendance events.
type InstructionAssignment struct {
	StudentID  int64
	ActivityID int64
	Date       time.Time
	Role       InstructionRole
}

// Store defines read access to persisted attendance data.
// Registration/upsert semantics are owned by the collaborator that writes
// events; the engine only reads. Implemented by the infrastructure layer.
type Store interface {
	// EventsByTurmaAndRange returns events of a turma whose date falls in
	// [from, to). Used by period recomputation and cohort reports.
	EventsByTurmaAndRange(ctx context.Context, turmaID int64, from, to time.Time) ([]Event, error)

	// EventsByStudent returns all events of one student, optionally bounded
	// by date. Used by the per-student history report.
	EventsByStudent(ctx context.Context, studentID int64, from, to *time.Time) ([]Event, error)

	// EventsByActivity returns all events recorded against one activity.
	// Used by the participation report.
	EventsByActivity(ctx context.Context, activityID int64) ([]Event, error)

	// InstructionAssignmentsByStudent returns the instruction history of one
	// student, optionally bounded by date.
	InstructionAssignmentsByStudent(ctx context.Context, studentID int64, from, to *time.Time) ([]InstructionAssignment, error)
}
