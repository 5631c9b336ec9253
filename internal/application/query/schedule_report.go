package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/application/filter"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE ADHERENCE REPORT
// Lists activities with their scheduled window and the deviation between plan
// and execution: atraso_dias when the realized end ran past the scheduled end,
// adiantamento_dias when the scheduled window itself is inverted. At most one
// of the two fields is ever set on a row.
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleQuery carries the raw request parameters of the report.
type ScheduleQuery struct {
	Params map[string]string
}

// ScheduleRowDTO is one activity of the schedule adherence report.
type ScheduleRowDTO struct {
	ActivityID       int64      `json:"activity_id"`
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	DataInicio       time.Time  `json:"data_inicio"`
	DataFim          time.Time  `json:"data_fim"`
	DataRealFim      *time.Time `json:"data_real_fim,omitempty"`
	AtrasoDias       *int       `json:"atraso_dias,omitempty"`
	AdiantamentoDias *int       `json:"adiantamento_dias,omitempty"`
}

// ScheduleSummaryDTO aggregates the rows of the report.
type ScheduleSummaryDTO struct {
	TotalAtividades int `json:"total_atividades"`
	NoPrazo         int `json:"no_prazo"`
	Atrasadas       int `json:"atrasadas"`
	Invertidas      int `json:"invertidas"`
}

// ScheduleResult is the report value object.
type ScheduleResult struct {
	Rows        []ScheduleRowDTO   `json:"rows"`
	Summary     ScheduleSummaryDTO `json:"summary"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// ScheduleHandler assembles the schedule adherence report from the catalog.
type ScheduleHandler struct {
	catalog catalog.Lookup
	cache   ReportCache
}

// NewScheduleHandler creates a new handler. The cache is optional.
func NewScheduleHandler(cat catalog.Lookup, cache ReportCache) *ScheduleHandler {
	return &ScheduleHandler{catalog: cat, cache: cache}
}

// Handle executes the report. All filter fields are optional; an empty filter
// reports on every activity the catalog lists.
func (h *ScheduleHandler) Handle(ctx context.Context, q ScheduleQuery) (*ScheduleResult, error) {
	f := filter.Normalize(q.Params)

	key := cacheKey("schedule", q.Params)
	var cached ScheduleResult
	if tryCache(ctx, h.cache, key, &cached) {
		return &cached, nil
	}

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

	result := &ScheduleResult{
		Rows:        make([]ScheduleRowDTO, 0, len(activities)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, act := range activities {
		row := ScheduleRowDTO{
			ActivityID:  act.ID,
			Name:        act.Name,
			Type:        act.Type,
			Status:      string(act.Status),
			DataInicio:  act.DataInicio,
			DataFim:     act.DataFim,
			DataRealFim: act.DataRealFim,
		}

		// Lateness wins when both conditions hold; a row never carries both
		// deviation fields at once.
		if atraso := act.AtrasoDias(); atraso != nil {
			row.AtrasoDias = atraso
		} else if adiantamento := act.AdiantamentoDias(); adiantamento != nil {
			row.AdiantamentoDias = adiantamento
		}

		result.Rows = append(result.Rows, row)
	}

	sortScheduleRows(result.Rows)
	result.Summary = summarizeSchedule(result.Rows)

	storeCache(ctx, h.cache, key, result)
	return result, nil
}

// sortScheduleRows orders by scheduled start ascending, then activity name
// case-insensitively.
func sortScheduleRows(rows []ScheduleRowDTO) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.DataInicio.Equal(b.DataInicio) {
			return a.DataInicio.Before(b.DataInicio)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

func summarizeSchedule(rows []ScheduleRowDTO) ScheduleSummaryDTO {
	s := ScheduleSummaryDTO{TotalAtividades: len(rows)}
	for _, row := range rows {
		switch {
		case row.AtrasoDias != nil:
			s.Atrasadas++
		case row.AdiantamentoDias != nil:
			s.Invertidas++
		default:
			s.NoPrazo++
		}
	}
	return s
}
