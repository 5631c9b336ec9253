package command

import (
	"context"
	"strings"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START FOLLOW-UP COMMAND
// Manual workflow transition: Pending → InProgress. The computed percentage is
// never touched; only the workflow section of the record changes.
// ══════════════════════════════════════════════════════════════════════════════

// StartFollowUpCommand marks a pending carência record as being followed up.
type StartFollowUpCommand struct {
	// RecordID identifies the carência record.
	RecordID string

	// Notes describe the remediation being started.
	Notes string
}

// Validate validates the command.
func (c StartFollowUpCommand) Validate() error {
	if strings.TrimSpace(c.RecordID) == "" {
		return shared.NewDomainError("command", "StartFollowUp", shared.ErrValidation, "record_id is required")
	}
	return nil
}

// StartFollowUpHandler executes the transition.
type StartFollowUpHandler struct {
	repo      carencia.Repository
	publisher shared.EventPublisher
}

// NewStartFollowUpHandler creates a new handler. The publisher is optional.
func NewStartFollowUpHandler(repo carencia.Repository, publisher shared.EventPublisher) *StartFollowUpHandler {
	return &StartFollowUpHandler{repo: repo, publisher: publisher}
}

// Handle loads the record, applies the domain transition, and persists the
// workflow section. Illegal transitions surface shared.ErrStateTransition.
func (h *StartFollowUpHandler) Handle(ctx context.Context, cmd StartFollowUpCommand) (*carencia.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record, err := h.repo.GetRecord(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}

	if err := record.StartFollowUp(cmd.Notes, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := h.repo.UpdateWorkflow(ctx, record); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewFollowUpStartedEvent(record.ID, record.StudentID, cmd.Notes))
	}

	return record, nil
}
