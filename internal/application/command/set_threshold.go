package command

import (
	"context"

	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET THRESHOLD COMMAND
// Changes the minimum percentage of a period. The change alone does not
// reclassify existing records; callers issue a recompute to apply it.
// ══════════════════════════════════════════════════════════════════════════════

// SetThresholdCommand configures the minimum percentage of a (turma, month,
// year) period, creating the period on first use.
type SetThresholdCommand struct {
	TurmaID int64
	Month   int
	Year    int

	// MinimumPercentage is the new threshold, 0-100.
	MinimumPercentage float64
}

// Validate validates the command.
func (c SetThresholdCommand) Validate() error {
	if c.TurmaID <= 0 {
		return shared.NewDomainError("command", "SetThreshold", shared.ErrValidation, "turma_id is required")
	}
	window := shared.MonthYear{Month: c.Month, Year: c.Year}
	if !window.IsValid() {
		return shared.NewDomainError("command", "SetThreshold", shared.ErrValidation, "month/year out of range")
	}
	if !shared.Percentage(c.MinimumPercentage).IsValid() {
		return shared.NewDomainError("command", "SetThreshold", shared.ErrValidation, "minimum_percentage must be between 0 and 100")
	}
	return nil
}

// SetThresholdHandler executes the threshold change.
type SetThresholdHandler struct {
	repo      carencia.Repository
	publisher shared.EventPublisher
}

// NewSetThresholdHandler creates a new handler. The publisher is optional.
func NewSetThresholdHandler(repo carencia.Repository, publisher shared.EventPublisher) *SetThresholdHandler {
	return &SetThresholdHandler{repo: repo, publisher: publisher}
}

// Handle ensures the period exists and persists the new threshold. The
// emitted event lets subscribers invalidate cached reports that embedded the
// old value.
func (h *SetThresholdHandler) Handle(ctx context.Context, cmd SetThresholdCommand) (*carencia.Period, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// A period created here starts at the package default so the change event
	// below reports the real old value.
	window := shared.MonthYear{Month: cmd.Month, Year: cmd.Year}
	period, err := h.repo.EnsurePeriod(ctx, cmd.TurmaID, window, carencia.DefaultMinimumPercentage)
	if err != nil {
		return nil, err
	}

	old := period.MinimumPercentage
	if err := period.SetMinimumPercentage(shared.Percentage(cmd.MinimumPercentage)); err != nil {
		return nil, err
	}
	if period.MinimumPercentage == old {
		return period, nil
	}

	if err := h.repo.UpdateThreshold(ctx, period.ID, period.MinimumPercentage); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewThresholdChangedEvent(period.ID, old.Float64(), period.MinimumPercentage.Float64()))
	}

	return period, nil
}
