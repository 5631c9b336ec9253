package query

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/application/filter"
	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPATION REPORT
// One row per activity matching the filter: how many students were convoked,
// how many showed up, and the presence percentage. Rows order by start date,
// then percentage (highest first), then case-insensitive name.
// ══════════════════════════════════════════════════════════════════════════════

// ParticipationQuery carries the raw request parameters of the report.
type ParticipationQuery struct {
	// Params are the untyped request parameters; the filter normalizer turns
	// them into the typed filter. Unknown keys are ignored.
	Params map[string]string
}

// ParticipationRowDTO is one activity row of the participation report.
type ParticipationRowDTO struct {
	ActivityID         int64     `json:"activity_id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	DataInicio         time.Time `json:"data_inicio"`
	Convocados         int       `json:"convocados"`
	Presentes          int       `json:"presentes"`
	PercentualPresenca float64   `json:"percentual_presenca"`
}

// ParticipationSummaryDTO aggregates the full row set; it is computed from the
// rows, never re-queried. Zero-match filters yield a zeroed summary, not nil.
type ParticipationSummaryDTO struct {
	TotalAtividades  int     `json:"total_atividades"`
	TotalConvocados  int     `json:"total_convocados"`
	TotalPresentes   int     `json:"total_presentes"`
	MediaPercentual  float64 `json:"media_percentual"`
	AtividadesVazias int     `json:"atividades_vazias"`
}

// ParticipationResult is the report value object handed to presentation.
type ParticipationResult struct {
	Rows        []ParticipationRowDTO   `json:"rows"`
	Summary     ParticipationSummaryDTO `json:"summary"`
	Warnings    []string                `json:"warnings,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// ParticipationHandler assembles the participation report.
type ParticipationHandler struct {
	catalog catalog.Lookup
	store   attendance.Store
	cache   ReportCache
}

// NewParticipationHandler creates a new handler. The cache is optional.
func NewParticipationHandler(cat catalog.Lookup, store attendance.Store, cache ReportCache) *ParticipationHandler {
	return &ParticipationHandler{catalog: cat, store: store, cache: cache}
}

// Handle executes the report.
func (h *ParticipationHandler) Handle(ctx context.Context, q ParticipationQuery) (*ParticipationResult, error) {
	key := cacheKey("participation", q.Params)
	var cached ParticipationResult
	if tryCache(ctx, h.cache, key, &cached) {
		return &cached, nil
	}

	f := filter.Normalize(q.Params)
	activities, err := h.catalog.ListActivities(ctx, catalog.ActivityFilter{
		CourseID: f.CourseID,
		TurmaID:  f.TurmaID,
		Type:     f.ActivityType,
		Status:   f.ActivityStatus,
		DateFrom: f.DateFrom,
		DateTo:   f.DateTo,
	})
	if err != nil {
		return nil, err
	}

	result := &ParticipationResult{
		Rows:        make([]ParticipationRowDTO, 0, len(activities)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, act := range activities {
		events, err := h.store.EventsByActivity(ctx, act.ID)
		if err != nil {
			return nil, err
		}

		counts, warnings := tallyActivity(events)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, w.String())
		}

		convocados := counts.Total()
		presentes := counts.Present
		pct := 0.0
		if convocados > 0 {
			pct = round2(float64(presentes) / float64(convocados) * 100)
		}

		result.Rows = append(result.Rows, ParticipationRowDTO{
			ActivityID:         act.ID,
			Name:               act.Name,
			Type:               act.Type,
			DataInicio:         act.DataInicio,
			Convocados:         convocados,
			Presentes:          presentes,
			PercentualPresenca: pct,
		})
	}

	sortParticipationRows(result.Rows)
	result.Summary = summarizeParticipation(result.Rows)

	storeCache(ctx, h.cache, key, result)
	return result, nil
}

// tallyActivity folds an activity's events into one tally.
func tallyActivity(events []attendance.Event) (attendance.StatusCounts, []attendance.Warning) {
	groups, warnings := attendance.Aggregate(events, attendance.ByActivity)
	var counts attendance.StatusCounts
	for _, c := range groups {
		counts.Merge(c)
	}
	return counts, warnings
}

// sortParticipationRows applies the report's tie-break ordering:
// start date ascending, percentage descending, name ascending case-insensitive.
func sortParticipationRows(rows []ParticipationRowDTO) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.DataInicio.Equal(b.DataInicio) {
			return a.DataInicio.Before(b.DataInicio)
		}
		if a.PercentualPresenca != b.PercentualPresenca {
			return a.PercentualPresenca > b.PercentualPresenca
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// summarizeParticipation totals the rows. The average percentage covers only
// rows with at least one convoked student; empty activities would skew it.
func summarizeParticipation(rows []ParticipationRowDTO) ParticipationSummaryDTO {
	var s ParticipationSummaryDTO
	s.TotalAtividades = len(rows)

	var pctSum float64
	var pctRows int
	for _, r := range rows {
		s.TotalConvocados += r.Convocados
		s.TotalPresentes += r.Presentes
		if r.Convocados > 0 {
			pctSum += r.PercentualPresenca
			pctRows++
		} else {
			s.AtividadesVazias++
		}
	}

	if pctRows > 0 {
		s.MediaPercentual = round2(pctSum / float64(pctRows))
	}
	return s
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
