package command

import (
	"context"
	"strings"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE CARENCIA COMMAND
// Manual workflow transition: any state → Resolved. Resolution forces the
// record cleared regardless of the stored percentage and is terminal; only a
// full period recompute produces a new automatic record for the student.
// ══════════════════════════════════════════════════════════════════════════════

// ResolveCarenciaCommand resolves a carência record.
type ResolveCarenciaCommand struct {
	// RecordID identifies the carência record.
	RecordID string

	// Notes document how the deficiency was handled.
	Notes string
}

// Validate validates the command.
func (c ResolveCarenciaCommand) Validate() error {
	if strings.TrimSpace(c.RecordID) == "" {
		return shared.NewDomainError("command", "ResolveCarencia", shared.ErrValidation, "record_id is required")
	}
	return nil
}

// ResolveCarenciaHandler executes the transition.
type ResolveCarenciaHandler struct {
	repo      carencia.Repository
	publisher shared.EventPublisher
}

// NewResolveCarenciaHandler creates a new handler. The publisher is optional.
func NewResolveCarenciaHandler(repo carencia.Repository, publisher shared.EventPublisher) *ResolveCarenciaHandler {
	return &ResolveCarenciaHandler{repo: repo, publisher: publisher}
}

// Handle loads the record, resolves it, and persists the workflow section.
func (h *ResolveCarenciaHandler) Handle(ctx context.Context, cmd ResolveCarenciaCommand) (*carencia.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record, err := h.repo.GetRecord(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}

	if err := record.Resolve(cmd.Notes, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := h.repo.UpdateWorkflow(ctx, record); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewCarenciaResolvedEvent(record.ID, record.StudentID, cmd.Notes))
	}

	return record, nil
}
