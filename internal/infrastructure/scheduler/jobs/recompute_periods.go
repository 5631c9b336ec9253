// Package jobs contains the scheduled jobs of the attendance engine.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/application/command"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
	"github.com/presenca-hub/presenca-engine/pkg/logger"
	"github.com/presenca-hub/presenca-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE PERIODS JOB
// Sweeps every active turma and rebuilds its current-month carência snapshot.
// Report reads never trigger computation; this sweep (plus explicit recompute
// commands) is what keeps the snapshots fresh.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputePeriodsJob runs the period recompute over all active turmas.
type RecomputePeriodsJob struct {
	catalog   catalog.Lookup
	recompute *command.RecomputePeriodHandler
	logger    *logger.Logger

	config RecomputePeriodsConfig
}

// RecomputePeriodsConfig tunes the sweep.
type RecomputePeriodsConfig struct {
	// Timezone decides which calendar month "now" belongs to. The legacy
	// deployment runs on America/Sao_Paulo.
	Timezone *time.Location

	// PerTurmaTimeout bounds one turma's recompute so a stuck turma cannot
	// consume the whole sweep.
	PerTurmaTimeout time.Duration

	// DiscardManualState forwards the destructive legacy recompute behavior.
	DiscardManualState bool
}

// DefaultRecomputePeriodsConfig returns sensible defaults.
func DefaultRecomputePeriodsConfig() RecomputePeriodsConfig {
	return RecomputePeriodsConfig{
		Timezone:        timeutil.SaoPauloTZ,
		PerTurmaTimeout: time.Minute,
	}
}

// NewRecomputePeriodsJob creates the sweep job.
func NewRecomputePeriodsJob(
	cat catalog.Lookup,
	recompute *command.RecomputePeriodHandler,
	log *logger.Logger,
	cfg RecomputePeriodsConfig,
) *RecomputePeriodsJob {
	if cfg.Timezone == nil {
		cfg.Timezone = timeutil.SaoPauloTZ
	}
	if cfg.PerTurmaTimeout <= 0 {
		cfg.PerTurmaTimeout = time.Minute
	}
	if log == nil {
		log = logger.Default()
	}

	return &RecomputePeriodsJob{
		catalog:   cat,
		recompute: recompute,
		logger:    log.With(logger.Component("recompute_periods_job")),
		config:    cfg,
	}
}

// Name returns the unique name of the job.
func (j *RecomputePeriodsJob) Name() string {
	return "recompute_periods"
}

// Description returns a human-readable description of the job.
func (j *RecomputePeriodsJob) Description() string {
	return "Rebuilds the current-month carência snapshot of every active turma"
}

// Run executes one sweep. Per-turma failures are logged and counted, not
// propagated: one broken turma must not starve the rest of the sweep.
func (j *RecomputePeriodsJob) Run(ctx context.Context) error {
	window := shared.MonthYearOf(time.Now().In(j.config.Timezone))

	turmas, err := j.catalog.ActiveTurmas(ctx)
	if err != nil {
		return fmt.Errorf("recompute sweep: failed to list active turmas: %w", err)
	}

	var failed int
	for _, turma := range turmas {
		if err := j.recomputeTurma(ctx, turma.ID, window); err != nil {
			failed++
			j.logger.Error("turma recompute failed",
				logger.TurmaID(turma.ID),
				logger.String("window", window.String()),
				logger.Err(err),
			)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	j.logger.Info("recompute sweep finished",
		logger.String("window", window.String()),
		logger.Int("turmas", len(turmas)),
		logger.Int("failed", failed),
	)

	if failed == len(turmas) && failed > 0 {
		return fmt.Errorf("recompute sweep: all %d turmas failed", failed)
	}
	return nil
}

func (j *RecomputePeriodsJob) recomputeTurma(ctx context.Context, turmaID int64, window shared.MonthYear) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.PerTurmaTimeout)
	defer cancel()

	_, err := j.recompute.Handle(ctx, command.RecomputePeriodCommand{
		TurmaID:            turmaID,
		Month:              window.Month,
		Year:               window.Year,
		DiscardManualState: j.config.DiscardManualState,
	})
	return err
}
