package catalog

import (
	"context"
	"time"
)

// ActivityFilter narrows activity listings. All fields are optional; a nil
// field means "no restriction". Built by the filter normalizer, never mutated.
type ActivityFilter struct {
	CourseID *int64
	TurmaID  *int64
	Type     *string
	Status   *string
	DateFrom *time.Time
	DateTo   *time.Time
}

// Lookup defines the read-only catalog access the engine depends on.
// Implemented by the infrastructure layer; the engine never writes catalog
// data and never sees the storage mechanism.
type Lookup interface {
	// GetCourse returns a course by ID, or shared.ErrCourseNotFound.
	GetCourse(ctx context.Context, id int64) (*Course, error)

	// GetTurma returns a turma by ID, or shared.ErrTurmaNotFound.
	GetTurma(ctx context.Context, id int64) (*Turma, error)

	// GetStudent returns a student by ID, or shared.ErrStudentNotFound.
	GetStudent(ctx context.Context, id int64) (*Student, error)

	// GetActivity returns an activity by ID, or shared.ErrActivityNotFound.
	GetActivity(ctx context.Context, id int64) (*Activity, error)

	// ListActivities returns activities matching the filter, unordered.
	// Report assembly applies the variant-specific ordering.
	ListActivities(ctx context.Context, filter ActivityFilter) ([]*Activity, error)

	// StudentsByTurma returns the students enrolled in a turma.
	StudentsByTurma(ctx context.Context, turmaID int64) ([]*Student, error)

	// ActiveTurmas returns turmas currently running. Used by the scheduled
	// period recompute sweep.
	ActiveTurmas(ctx context.Context) ([]*Turma, error)
}
