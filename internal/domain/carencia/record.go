package carencia

import (
	"time"

	"github.com/google/uuid"

	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// WorkflowStatus is the manual remediation state layered on top of the
// automatically computed clearance.
type WorkflowStatus string

const (
	// WorkflowNone - record is cleared, no remediation applies.
	WorkflowNone WorkflowStatus = ""

	// WorkflowPending - automatic classification found a deficiency, nobody
	// has acted on it yet.
	WorkflowPending WorkflowStatus = "pendente"

	// WorkflowInProgress - someone started following up with the student.
	WorkflowInProgress WorkflowStatus = "em_acompanhamento"

	// WorkflowResolved - terminal state; the deficiency was handled manually
	// and the record is cleared regardless of the stored percentage.
	WorkflowResolved WorkflowStatus = "resolvida"
)

// Provenance distinguishes automatic classification output from records that
// carry manual workflow state. It makes the recompute preservation policy an
// explicit, testable choice instead of an accident of the storage layer.
type Provenance string

const (
	ProvenanceAutomatic Provenance = "automatic"
	ProvenanceManual    Provenance = "manual"
)

// Computed is the immutable section of a record: the numbers derived from raw
// attendance. It is replaced wholesale on every recompute and never edited.
type Computed struct {
	TotalPresences  int
	TotalActivities int
	Percentage      shared.Percentage
	DeficiencyCount int
	Cleared         bool
}

// Record is the per-(period, student) carência outcome. One record per
// student per period; the full set for a period is rebuilt atomically on
// recompute.
type Record struct {
	ID        string
	PeriodID  string
	StudentID int64

	Computed Computed

	// Workflow section, mutable through explicit transitions only.
	Status     WorkflowStatus
	Notes      string
	Provenance Provenance

	CreatedAt time.Time
	UpdatedAt time.Time
}

// newRecord builds a freshly classified record. Cleared and the initial
// workflow status both derive from the percentage/threshold comparison.
func newRecord(periodID string, studentID int64, presences, total int, minimum shared.Percentage, at time.Time) *Record {
	pct := shared.NewPercentage(presences, total)
	cleared := pct.Meets(minimum)

	status := WorkflowPending
	if cleared {
		status = WorkflowNone
	}

	deficiency := total - presences
	if deficiency < 0 {
		deficiency = 0
	}

	return &Record{
		ID:        uuid.NewString(),
		PeriodID:  periodID,
		StudentID: studentID,
		Computed: Computed{
			TotalPresences:  presences,
			TotalActivities: total,
			Percentage:      pct,
			DeficiencyCount: deficiency,
			Cleared:         cleared,
		},
		Status:     status,
		Provenance: ProvenanceAutomatic,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

// IsDeficient reports whether the record still requires remediation.
func (r *Record) IsDeficient() bool {
	return !r.Computed.Cleared
}

// IsResolved reports whether the record reached the terminal workflow state.
func (r *Record) IsResolved() bool {
	return r.Status == WorkflowResolved
}

// StartFollowUp moves a pending record into follow-up. The computed section
// is untouched; only the workflow state changes.
func (r *Record) StartFollowUp(notes string, at time.Time) error {
	if r.Status == WorkflowResolved {
		return shared.ErrAlreadyResolved
	}
	if r.Status != WorkflowPending {
		return shared.ErrNotPending
	}

	r.Status = WorkflowInProgress
	r.Notes = notes
	r.Provenance = ProvenanceManual
	r.UpdatedAt = at
	return nil
}

// Resolve marks the record resolved from any state and forces Cleared true
// regardless of the stored percentage. Resolved is terminal: only a full
// period recompute produces a new automatic record for the student.
func (r *Record) Resolve(notes string, at time.Time) error {
	if r.Status == WorkflowResolved {
		return shared.ErrAlreadyResolved
	}

	r.Status = WorkflowResolved
	r.Computed.Cleared = true
	if notes != "" {
		r.Notes = notes
	}
	r.Provenance = ProvenanceManual
	r.UpdatedAt = at
	return nil
}

// adoptWorkflow carries manual workflow state from a previous snapshot onto a
// freshly classified record. Used by the recompute preservation policy.
func (r *Record) adoptWorkflow(prev *Record) {
	r.Status = prev.Status
	r.Notes = prev.Notes
	r.Provenance = ProvenanceManual
	if prev.Status == WorkflowResolved {
		r.Computed.Cleared = true
	}
}
