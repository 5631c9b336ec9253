package query

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/application/filter"
	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FREQUENCY / DEFICIENCY REPORT
// One row per student per month within a turma. When the period has a stored
// carência snapshot the row reuses it (including the workflow state); when it
// does not, the row is computed from raw events on the fly. Both paths yield
// numerically identical presence/absence totals.
// ══════════════════════════════════════════════════════════════════════════════

// FrequencyQuery carries the raw request parameters of the report.
type FrequencyQuery struct {
	Params map[string]string
}

// FrequencyRowDTO is one (student, month) row.
type FrequencyRowDTO struct {
	StudentID       int64   `json:"student_id"`
	StudentName     string  `json:"student_name"`
	Month           int     `json:"month"`
	Year            int     `json:"year"`
	TotalPresencas  int     `json:"total_presencas"`
	TotalAtividades int     `json:"total_atividades"`
	Percentual      float64 `json:"percentual"`
	Carencias       int     `json:"carencias"`
	Liberado        bool    `json:"liberado"`
	WorkflowStatus  string  `json:"workflow_status,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	PercentualMin   float64 `json:"percentual_minimo"`
	FromSnapshot    bool    `json:"from_snapshot"`
}

// FrequencySummaryDTO aggregates the full row set.
type FrequencySummaryDTO struct {
	TotalRows       int     `json:"total_rows"`
	TotalStudents   int     `json:"total_students"`
	DeficientRows   int     `json:"deficient_rows"`
	MediaPercentual float64 `json:"media_percentual"`
}

// FrequencyResult is the report value object.
type FrequencyResult struct {
	TurmaID     int64               `json:"turma_id"`
	TurmaName   string              `json:"turma_name"`
	Rows        []FrequencyRowDTO   `json:"rows"`
	Summary     FrequencySummaryDTO `json:"summary"`
	Warnings    []string            `json:"warnings,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// FrequencyHandler assembles the frequency/deficiency report.
type FrequencyHandler struct {
	catalog catalog.Lookup
	store   attendance.Store
	repo    carencia.Repository
	cache   ReportCache
}

// NewFrequencyHandler creates a new handler. The cache is optional.
func NewFrequencyHandler(cat catalog.Lookup, store attendance.Store, repo carencia.Repository, cache ReportCache) *FrequencyHandler {
	return &FrequencyHandler{catalog: cat, store: store, repo: repo, cache: cache}
}

// Handle executes the report. The turma is the one required filter field.
func (h *FrequencyHandler) Handle(ctx context.Context, q FrequencyQuery) (*FrequencyResult, error) {
	f := filter.Normalize(q.Params)
	if !f.HasTurma() {
		return nil, shared.NewDomainError("query", "Frequency", shared.ErrValidation, "turma filter is required")
	}

	key := cacheKey("frequency", q.Params)
	var cached FrequencyResult
	if tryCache(ctx, h.cache, key, &cached) {
		return &cached, nil
	}

	turma, err := h.catalog.GetTurma(ctx, *f.TurmaID)
	if err != nil {
		return nil, err
	}

	students, err := h.catalog.StudentsByTurma(ctx, turma.ID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}

	from, to := frequencyWindow(f)
	events, err := h.store.EventsByTurmaAndRange(ctx, turma.ID, from, to)
	if err != nil {
		return nil, err
	}

	groups, warnings := attendance.Aggregate(events, attendance.ByStudentMonth)

	result := &FrequencyResult{
		TurmaID:     turma.ID,
		TurmaName:   turma.Name,
		Rows:        make([]FrequencyRowDTO, 0, len(groups)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, w.String())
	}

	// Stored snapshots are fetched once per month window present in the data.
	snapshots := make(map[shared.MonthYear]periodSnapshot)

	for gk, counts := range groups {
		if f.HasStudent() && gk.StudentID != *f.StudentID {
			continue
		}

		window := shared.MonthYear{Month: int(gk.Month), Year: gk.Year}
		snap, ok := snapshots[window]
		if !ok {
			snap, err = h.loadSnapshot(ctx, turma.ID, window)
			if err != nil {
				return nil, err
			}
			snapshots[window] = snap
		}

		row := FrequencyRowDTO{
			StudentID:     gk.StudentID,
			StudentName:   names[gk.StudentID],
			Month:         window.Month,
			Year:          window.Year,
			PercentualMin: snap.threshold.Float64(),
		}

		if rec, ok := snap.records[gk.StudentID]; ok {
			row.TotalPresencas = rec.Computed.TotalPresences
			row.TotalAtividades = rec.Computed.TotalActivities
			row.Percentual = rec.Computed.Percentage.Float64()
			row.Carencias = rec.Computed.DeficiencyCount
			row.Liberado = rec.Computed.Cleared
			row.WorkflowStatus = string(rec.Status)
			row.Notes = rec.Notes
			row.FromSnapshot = true
		} else {
			// Fallback: same arithmetic the classifier applies, so totals are
			// numerically identical to a stored snapshot of the same events.
			presences := counts.Presences()
			total := counts.Total()
			pct := shared.NewPercentage(presences, total)
			row.TotalPresencas = presences
			row.TotalAtividades = total
			row.Percentual = pct.Float64()
			row.Carencias = total - presences
			row.Liberado = pct.Meets(snap.threshold)
			if !row.Liberado {
				row.WorkflowStatus = string(carencia.WorkflowPending)
			}
		}

		result.Rows = append(result.Rows, row)
	}

	sortFrequencyRows(result.Rows)
	result.Summary = summarizeFrequency(result.Rows)

	storeCache(ctx, h.cache, key, result)
	return result, nil
}

// periodSnapshot bundles the stored records of one period window.
type periodSnapshot struct {
	threshold shared.Percentage
	records   map[int64]*carencia.Record
}

// loadSnapshot fetches the stored period and records. A missing period just
// means every row of that month computes from raw events with the default
// threshold; any other repository failure aborts the report.
func (h *FrequencyHandler) loadSnapshot(ctx context.Context, turmaID int64, window shared.MonthYear) (periodSnapshot, error) {
	snap := periodSnapshot{
		threshold: carencia.DefaultMinimumPercentage,
		records:   map[int64]*carencia.Record{},
	}

	period, err := h.repo.GetPeriod(ctx, turmaID, window)
	if errors.Is(err, shared.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return periodSnapshot{}, err
	}
	snap.threshold = period.MinimumPercentage

	records, err := h.repo.RecordsForPeriod(ctx, period.ID)
	if err != nil {
		return periodSnapshot{}, err
	}
	snap.records = carencia.IndexByStudent(records)
	return snap, nil
}

// frequencyWindow derives the event query window from the filter; unbounded
// sides fall back to a wide fixed range.
func frequencyWindow(f filter.ReportFilter) (time.Time, time.Time) {
	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Now().UTC().AddDate(1, 0, 0)
	if f.DateFrom != nil {
		from = *f.DateFrom
	}
	if f.DateTo != nil {
		to = f.DateTo.AddDate(0, 0, 1) // inclusive upper bound, day precision
	}
	return from, to
}

// sortFrequencyRows orders rows by month window, then student name
// (case-insensitive), then student ID for stability.
func sortFrequencyRows(rows []FrequencyRowDTO) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		an, bn := strings.ToLower(a.StudentName), strings.ToLower(b.StudentName)
		if an != bn {
			return an < bn
		}
		return a.StudentID < b.StudentID
	})
}

// summarizeFrequency totals the rows.
func summarizeFrequency(rows []FrequencyRowDTO) FrequencySummaryDTO {
	var s FrequencySummaryDTO
	s.TotalRows = len(rows)

	students := make(map[int64]struct{}, len(rows))
	var pctSum float64
	var pctRows int
	for _, r := range rows {
		students[r.StudentID] = struct{}{}
		if !r.Liberado {
			s.DeficientRows++
		}
		if r.TotalAtividades > 0 {
			pctSum += r.Percentual
			pctRows++
		}
	}
	s.TotalStudents = len(students)
	if pctRows > 0 {
		s.MediaPercentual = round2(pctSum / float64(pctRows))
	}
	return s
}
