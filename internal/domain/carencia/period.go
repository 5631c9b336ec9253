// Package carencia contains the deficiency ("carência") domain: periods with
// configurable attendance thresholds, per-student records with a computed
// section and a manual workflow section, and the classifier that produces
// records from aggregated attendance counts.
package carencia

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// DefaultMinimumPercentage is the threshold applied when a period is created
// without an explicit configuration. It lives on the Period entity afterwards;
// business logic never falls back to this constant directly.
const DefaultMinimumPercentage shared.Percentage = 75

// Period is a (turma, month, year) window with a configured attendance
// threshold. Identity is immutable; the threshold is configurable. Version is
// an optimistic token bumped on every recompute so concurrent replace-all
// snapshots cannot silently overwrite each other.
type Period struct {
	ID                string
	TurmaID           int64
	Window            shared.MonthYear
	MinimumPercentage shared.Percentage
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPeriod creates a period for the given turma and month window.
func NewPeriod(turmaID int64, window shared.MonthYear, minimum shared.Percentage) (*Period, error) {
	if turmaID <= 0 {
		return nil, shared.NewDomainError("carencia", "NewPeriod", shared.ErrInvalidID, "invalid turma ID")
	}
	if !window.IsValid() {
		return nil, shared.ErrInvalidMonth
	}
	if !minimum.IsValid() {
		return nil, shared.ErrInvalidThreshold
	}

	now := time.Now().UTC()
	return &Period{
		ID:                uuid.NewString(),
		TurmaID:           turmaID,
		Window:            window,
		MinimumPercentage: minimum,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Key returns the natural identity of the period, used for lock names and logs.
func (p *Period) Key() string {
	return fmt.Sprintf("%d:%s", p.TurmaID, p.Window)
}

// SetMinimumPercentage updates the threshold. It does not reclassify existing
// records; callers trigger a recompute when they want the new threshold applied.
func (p *Period) SetMinimumPercentage(minimum shared.Percentage) error {
	if !minimum.IsValid() {
		return shared.ErrInvalidThreshold
	}
	p.MinimumPercentage = minimum
	p.UpdatedAt = time.Now().UTC()
	return nil
}
