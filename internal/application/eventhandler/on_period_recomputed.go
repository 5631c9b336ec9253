// Package eventhandler contains the domain event handlers. Handlers are the
// reactive part of the engine: they subscribe to domain events and run side
// effects such as cache invalidation, keeping the command path free of them.
package eventhandler

import (
	"context"
	"fmt"

	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
	"github.com/presenca-hub/presenca-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON PERIOD RECOMPUTED HANDLER
// A recompute replaces the carência snapshot of a period, so every cached
// report assembled before it may now be stale. This handler drops the cached
// reports whenever a period is recomputed or its threshold changes.
// ══════════════════════════════════════════════════════════════════════════════

// CacheInvalidator removes cached entries matching a glob-style pattern.
// The redis report cache satisfies it.
type CacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// OnPeriodRecomputedHandler invalidates the report cache after a recompute.
type OnPeriodRecomputedHandler struct {
	cache  CacheInvalidator
	logger *logger.Logger

	// patterns are the cache key globs dropped on each event.
	patterns []string
}

// NewOnPeriodRecomputedHandler creates a new handler. Invalidation covers all
// report variants that read carência data or attendance aggregates.
func NewOnPeriodRecomputedHandler(cache CacheInvalidator, log *logger.Logger) *OnPeriodRecomputedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnPeriodRecomputedHandler{
		cache:  cache,
		logger: log.With(logger.Component("eventhandler")),
		patterns: []string{
			"report:frequency:*",
			"report:participation:*",
			"report:student_history:*",
		},
	}
}

// Handle processes a single domain event. Invalidation failures are logged
// and swallowed: a stale cache entry expires on its own TTL, so the event
// must never be retried or poison the bus.
func (h *OnPeriodRecomputedHandler) Handle(ctx context.Context, event shared.Event) error {
	switch event.EventType() {
	case shared.EventPeriodRecomputed, shared.EventThresholdChanged:
	default:
		return nil
	}

	log := h.logger.With(
		logger.Operation("invalidate_report_cache"),
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
	)

	var failed int
	for _, pattern := range h.patterns {
		if err := h.cache.DeleteByPattern(ctx, pattern); err != nil {
			failed++
			log.Warn(fmt.Sprintf("failed to invalidate pattern %s", pattern), logger.Err(err))
		}
	}

	if failed == 0 {
		log.Debug("report cache invalidated")
	}
	return nil
}
