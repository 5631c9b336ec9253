// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
	"github.com/presenca-hub/presenca-engine/pkg/logger"
	"github.com/presenca-hub/presenca-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE PERIOD COMMAND
// Rebuilds the carência record set of one (turma, month, year) period from the
// raw attendance events: aggregate → classify → atomically swap the snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputePeriodCommand identifies the period to rebuild.
type RecomputePeriodCommand struct {
	// TurmaID is the cohort whose period is recomputed.
	TurmaID int64

	// Month and Year select the period window.
	Month int
	Year  int

	// DiscardManualState drops manual workflow status/notes instead of
	// carrying them onto the fresh snapshot. The legacy system always
	// discarded; the default here preserves.
	DiscardManualState bool
}

// Validate validates the command.
func (c RecomputePeriodCommand) Validate() error {
	if c.TurmaID <= 0 {
		return shared.NewDomainError("command", "RecomputePeriod", shared.ErrValidation, "turma_id is required")
	}
	if _, err := shared.NewMonthYear(c.Month, c.Year); err != nil {
		return shared.WrapError("command", "RecomputePeriod", shared.ErrValidation, "invalid period window", err)
	}
	return nil
}

// Window returns the month window of the command.
func (c RecomputePeriodCommand) Window() shared.MonthYear {
	return shared.MonthYear{Month: c.Month, Year: c.Year}
}

// RecomputePeriodResult reports what the rebuild produced.
type RecomputePeriodResult struct {
	PeriodID       string
	TotalRecords   int
	DeficientCount int
	ClearedCount   int
	PreservedCount int

	// Warnings lists events skipped during aggregation (unknown status codes,
	// catalog mismatches). Skipping is the policy; warnings are the side channel.
	Warnings []attendance.Warning
}

// RecomputePeriodHandler executes the rebuild under a per-period lock.
type RecomputePeriodHandler struct {
	store      attendance.Store
	catalog    catalog.Lookup
	repo       carencia.Repository
	locker     carencia.PeriodLocker
	classifier *carencia.Classifier
	publisher  shared.EventPublisher
	log        *logger.Logger

	lockTTL        time.Duration
	lockRetrier    *retry.Retrier
	defaultMinimum shared.Percentage
}

// RecomputePeriodConfig tunes lock behavior and period defaults.
type RecomputePeriodConfig struct {
	// LockTTL is the crash-guard expiry of the period lock.
	LockTTL time.Duration

	// LockRetrier retries lock acquisition with backoff. Nil uses
	// retry.LockRetrier().
	LockRetrier *retry.Retrier

	// DefaultMinimumPercentage seeds the threshold of periods created by this
	// handler. Zero falls back to carencia.DefaultMinimumPercentage.
	DefaultMinimumPercentage float64
}

// NewRecomputePeriodHandler creates a new handler. The publisher and logger
// are optional; everything else is required.
func NewRecomputePeriodHandler(
	store attendance.Store,
	cat catalog.Lookup,
	repo carencia.Repository,
	locker carencia.PeriodLocker,
	publisher shared.EventPublisher,
	log *logger.Logger,
	cfg RecomputePeriodConfig,
) *RecomputePeriodHandler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.LockRetrier == nil {
		cfg.LockRetrier = retry.LockRetrier()
	}
	if log == nil {
		log = logger.Default()
	}

	defaultMinimum := shared.Percentage(cfg.DefaultMinimumPercentage)
	if defaultMinimum <= 0 || !defaultMinimum.IsValid() {
		defaultMinimum = carencia.DefaultMinimumPercentage
	}

	return &RecomputePeriodHandler{
		store:          store,
		catalog:        cat,
		repo:           repo,
		locker:         locker,
		classifier:     carencia.NewClassifier(),
		publisher:      publisher,
		log:            log.With(logger.Component("recompute_period")),
		lockTTL:        cfg.LockTTL,
		lockRetrier:    cfg.LockRetrier,
		defaultMinimum: defaultMinimum,
	}
}

// Handle rebuilds the period record set. The delete-then-insert swap runs in
// one repository transaction; the per-period lock plus the period version
// token prevent two concurrent recomputes from losing each other's writes.
func (h *RecomputePeriodHandler) Handle(ctx context.Context, cmd RecomputePeriodCommand) (*RecomputePeriodResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Unknown turma is the caller's problem, reported before touching locks.
	turma, err := h.catalog.GetTurma(ctx, cmd.TurmaID)
	if err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("%d:%s", cmd.TurmaID, cmd.Window())
	if err := h.acquireLock(ctx, lockKey); err != nil {
		return nil, err
	}
	defer func() {
		if err := h.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			h.log.Warn("failed to release period lock", logger.String("lock", lockKey), logger.Err(err))
		}
	}()

	period, err := h.repo.EnsurePeriod(ctx, turma.ID, cmd.Window(), h.defaultMinimum)
	if err != nil {
		return nil, err
	}

	events, warnings, err := h.loadEvents(ctx, turma.ID, period.Window)
	if err != nil {
		return nil, err
	}

	perStudent, aggWarnings := attendance.Aggregate(events, attendance.ByStudent)
	warnings = append(warnings, aggWarnings...)

	previous, err := h.repo.RecordsForPeriod(ctx, period.ID)
	if err != nil {
		return nil, err
	}

	previousByStudent := carencia.IndexByStudent(previous)
	records := h.classifier.Classify(period, perStudent, carencia.ClassifyOptions{
		Previous:           previousByStudent,
		DiscardManualState: cmd.DiscardManualState,
	})

	if err := h.repo.ReplaceForPeriod(ctx, period.ID, period.Version, records); err != nil {
		return nil, err
	}

	summary := carencia.Summarize(records)
	h.log.Info("period recomputed",
		logger.TurmaID(turma.ID),
		logger.PeriodKey(period.Key()),
		logger.Int("records", summary.Total),
		logger.Int("deficient", summary.Deficient),
		logger.Int("preserved", summary.Preserved),
		logger.Int("warnings", len(warnings)),
	)

	if h.publisher != nil {
		event := shared.NewPeriodRecomputedEvent(
			period.ID, turma.ID, period.Window.Month, period.Window.Year,
			summary.Total, summary.Deficient, summary.Preserved,
		)
		if err := h.publisher.Publish(event); err != nil {
			h.log.Warn("failed to publish recompute event", logger.Err(err))
		}

		h.publishNewlyPending(period, records, previousByStudent)

		if len(warnings) > 0 {
			warning := shared.NewAggregationWarningEvent(turma.ID, len(warnings), warnings[0].Reason, "recompute_period")
			if err := h.publisher.Publish(warning); err != nil {
				h.log.Warn("failed to publish aggregation warning event", logger.Err(err))
			}
		}
	}

	return &RecomputePeriodResult{
		PeriodID:       period.ID,
		TotalRecords:   summary.Total,
		DeficientCount: summary.Deficient,
		ClearedCount:   summary.Cleared,
		PreservedCount: summary.Preserved,
		Warnings:       warnings,
	}, nil
}

// publishNewlyPending emits one pending event per student whose deficiency is
// new in this snapshot. Students already pending before the recompute stay
// silent; re-announcing them every run would drown the consumer.
func (h *RecomputePeriodHandler) publishNewlyPending(period *carencia.Period, records []*carencia.Record, previous map[int64]*carencia.Record) {
	for _, rec := range records {
		if rec.Status != carencia.WorkflowPending {
			continue
		}
		if prev, ok := previous[rec.StudentID]; ok && prev.Status != carencia.WorkflowNone {
			continue
		}

		event := shared.NewCarenciaPendingEvent(
			rec.ID, period.ID, rec.StudentID,
			rec.Computed.Percentage.Float64(), period.MinimumPercentage.Float64(),
		)
		if err := h.publisher.Publish(event); err != nil {
			h.log.Warn("failed to publish pending event",
				logger.StudentID(rec.StudentID), logger.Err(err))
		}
	}
}

// acquireLock takes the per-period lock, retrying with backoff while another
// recompute holds it. Exhausted retries surface as a concurrency conflict.
func (h *RecomputePeriodHandler) acquireLock(ctx context.Context, lockKey string) error {
	err := h.lockRetrier.Do(ctx, func(ctx context.Context) error {
		ok, err := h.locker.Acquire(ctx, lockKey, h.lockTTL)
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			return retry.Retryable(shared.ErrLockNotAcquired)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrLockNotAcquired) {
			return shared.WrapError("command", "RecomputePeriod", shared.ErrConcurrencyConflict,
				fmt.Sprintf("period %s is locked by another recompute", lockKey), shared.ErrRecomputeInProgress)
		}
		return shared.WrapError("command", "RecomputePeriod", shared.ErrConcurrencyConflict,
			fmt.Sprintf("failed to acquire lock for period %s", lockKey), err)
	}
	return nil
}

// loadEvents fetches the month's events and drops the ones referencing
// activities missing from the catalog. Offending records are skipped with a
// warning rather than aborting the whole aggregation.
func (h *RecomputePeriodHandler) loadEvents(ctx context.Context, turmaID int64, window shared.MonthYear) ([]attendance.Event, []attendance.Warning, error) {
	from := window.Start(time.UTC)
	to := window.End(time.UTC)

	events, err := h.store.EventsByTurmaAndRange(ctx, turmaID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("recompute_period: failed to load attendance events: %w", err)
	}

	activities, err := h.catalog.ListActivities(ctx, catalog.ActivityFilter{TurmaID: &turmaID})
	if err != nil {
		return nil, nil, err
	}
	known := make(map[int64]struct{}, len(activities))
	for _, a := range activities {
		known[a.ID] = struct{}{}
	}

	kept := events[:0]
	var warnings []attendance.Warning
	for _, ev := range events {
		if _, ok := known[ev.ActivityID]; !ok {
			warnings = append(warnings, attendance.Warning{
				EventKey: ev.Key(),
				Reason:   "activity not found in catalog",
			})
			continue
		}
		kept = append(kept, ev)
	}

	return kept, warnings, nil
}
