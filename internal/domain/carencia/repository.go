package carencia

import (
	"context"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// Repository defines persistence for periods and carência records.
// Implemented by the infrastructure layer.
type Repository interface {
	// GetPeriod returns the period for (turma, window), or shared.ErrPeriodNotFound.
	GetPeriod(ctx context.Context, turmaID int64, window shared.MonthYear) (*Period, error)

	// EnsurePeriod returns the period for (turma, window), creating it with
	// the given threshold on first request for that window. The threshold of
	// an existing period is never touched here.
	EnsurePeriod(ctx context.Context, turmaID int64, window shared.MonthYear, minimum shared.Percentage) (*Period, error)

	// UpdateThreshold persists a threshold change on an existing period.
	UpdateThreshold(ctx context.Context, periodID string, minimum shared.Percentage) error

	// RecordsForPeriod returns the current record set of a period, ordered by
	// student ID.
	RecordsForPeriod(ctx context.Context, periodID string) ([]*Record, error)

	// GetRecord returns one record by ID, or shared.ErrRecordNotFound.
	GetRecord(ctx context.Context, recordID string) (*Record, error)

	// RecordsForStudent returns a student's records across periods of a turma,
	// newest window first. Used by the student history report.
	RecordsForStudent(ctx context.Context, turmaID, studentID int64) ([]StudentRecord, error)

	// ReplaceForPeriod atomically swaps the record set of a period: the prior
	// rows are deleted and the new snapshot inserted in one transaction, and
	// the period version advances from expectedVersion. A reader never
	// observes a partially cleared set. Returns shared.ErrPeriodVersionStale
	// when the stored version no longer matches expectedVersion.
	ReplaceForPeriod(ctx context.Context, periodID string, expectedVersion int64, records []*Record) error

	// UpdateWorkflow persists the workflow section of a record after a manual
	// transition. The computed section is never updated through this path.
	UpdateWorkflow(ctx context.Context, record *Record) error
}

// StudentRecord pairs a record with the window of its period, for
// cross-period views of one student.
type StudentRecord struct {
	Window shared.MonthYear
	Record *Record
}

// PeriodLocker serializes recompute operations per period. The legacy system
// had no mutual exclusion here; two concurrent replace-all recomputes were a
// last-writer-wins race. Implemented on Redis SETNX in infrastructure.
type PeriodLocker interface {
	// Acquire takes the lock for a period key, returning false when another
	// holder owns it. The lock expires after ttl as a crash guard.
	Acquire(ctx context.Context, periodKey string, ttl time.Duration) (bool, error)

	// Release frees the lock.
	Release(ctx context.Context, periodKey string) error
}
