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
// STUDENT HISTORY REPORT
// Merges every event type of one student - class attendance, volunteer roles,
// instruction assignments - into a single timeline, newest first, with a
// role-distribution map and participation totals.
// ══════════════════════════════════════════════════════════════════════════════

// StudentHistoryQuery carries the raw request parameters of the report.
type StudentHistoryQuery struct {
	Params map[string]string
}

// HistoryEntryDTO is one timeline entry.
type HistoryEntryDTO struct {
	Date         time.Time `json:"date"`
	ActivityID   int64     `json:"activity_id"`
	ActivityName string    `json:"activity_name"`
	Role         string    `json:"role"`
	Presence     bool      `json:"presence"`
}

// HistoryTotalsDTO aggregates the timeline. Totals cover the same entries the
// timeline shows; a role filter narrows both together.
type HistoryTotalsDTO struct {
	Events          int `json:"events"`
	Participations  int `json:"participations"`
	Presences       int `json:"presences"`
	Absences        int `json:"absences"`
	VolunteerActs   int `json:"volunteer_acts"`
	InstructionActs int `json:"instruction_acts"`
}

// CarenciaEntryDTO is one per-period carência outcome of the student,
// included when the query pins a turma.
type CarenciaEntryDTO struct {
	Month      int     `json:"month"`
	Year       int     `json:"year"`
	Percentage float64 `json:"percentage"`
	Deficient  bool    `json:"deficient"`
	Workflow   string  `json:"workflow,omitempty"`
}

// StudentHistoryResult is the report value object.
type StudentHistoryResult struct {
	StudentID        int64              `json:"student_id"`
	StudentName      string             `json:"student_name"`
	Entries          []HistoryEntryDTO  `json:"entries"`
	Carencia         []CarenciaEntryDTO `json:"carencia,omitempty"`
	RoleDistribution map[string]int     `json:"role_distribution"`
	Totals           HistoryTotalsDTO   `json:"totals"`
	Warnings         []string           `json:"warnings,omitempty"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// historyItem pairs a timeline entry with the classification needed to total
// it after the role filter runs.
type historyItem struct {
	entry       HistoryEntryDTO
	status      attendance.Status
	instruction bool
}

// StudentHistoryHandler assembles the per-student history report.
type StudentHistoryHandler struct {
	catalog catalog.Lookup
	store   attendance.Store
	repo    carencia.Repository
	cache   ReportCache
}

// NewStudentHistoryHandler creates a new handler. The repo backs the carência
// section and is optional, as is the cache.
func NewStudentHistoryHandler(cat catalog.Lookup, store attendance.Store, repo carencia.Repository, cache ReportCache) *StudentHistoryHandler {
	return &StudentHistoryHandler{catalog: cat, store: store, repo: repo, cache: cache}
}

// Handle executes the report. The student is the one required filter field.
func (h *StudentHistoryHandler) Handle(ctx context.Context, q StudentHistoryQuery) (*StudentHistoryResult, error) {
	f := filter.Normalize(q.Params)
	if !f.HasStudent() {
		return nil, shared.NewDomainError("query", "StudentHistory", shared.ErrValidation, "aluno filter is required")
	}

	key := cacheKey("student_history", q.Params)
	var cached StudentHistoryResult
	if tryCache(ctx, h.cache, key, &cached) {
		return &cached, nil
	}

	student, err := h.catalog.GetStudent(ctx, *f.StudentID)
	if err != nil {
		return nil, err
	}

	events, err := h.store.EventsByStudent(ctx, student.ID, f.DateFrom, f.DateTo)
	if err != nil {
		return nil, err
	}
	assignments, err := h.store.InstructionAssignmentsByStudent(ctx, student.ID, f.DateFrom, f.DateTo)
	if err != nil {
		return nil, err
	}

	var carenciaHistory []carencia.StudentRecord
	if f.HasTurma() && h.repo != nil {
		carenciaHistory, err = h.repo.RecordsForStudent(ctx, *f.TurmaID, student.ID)
		if err != nil {
			return nil, err
		}
	}

	result := &StudentHistoryResult{
		StudentID:        student.ID,
		StudentName:      student.Name,
		RoleDistribution: map[string]int{},
		GeneratedAt:      time.Now().UTC(),
	}

	names := newActivityNames(h.catalog)
	items := make([]historyItem, 0, len(events)+len(assignments))

	for _, ev := range events {
		if !ev.Status.IsValid() {
			result.Warnings = append(result.Warnings, ev.Key()+": unknown status code "+string(ev.Status))
			continue
		}

		name, err := names.resolve(ctx, ev.ActivityID)
		if err != nil {
			// Event points at an activity the catalog no longer knows: skip
			// the record and keep going, per the permissive legacy policy.
			result.Warnings = append(result.Warnings, ev.Key()+": activity not found in catalog")
			continue
		}

		items = append(items, historyItem{
			entry: HistoryEntryDTO{
				Date:         ev.Date,
				ActivityID:   ev.ActivityID,
				ActivityName: name,
				Role:         ev.Status.Label(),
				Presence:     ev.Status.IsPresence(),
			},
			status: ev.Status,
		})
	}

	for _, as := range assignments {
		name, err := names.resolve(ctx, as.ActivityID)
		if err != nil {
			result.Warnings = append(result.Warnings, "instruction assignment: activity not found in catalog")
			continue
		}

		items = append(items, historyItem{
			entry: HistoryEntryDTO{
				Date:         as.Date,
				ActivityID:   as.ActivityID,
				ActivityName: name,
				Role:         as.Role.Label(),
				Presence:     true,
			},
			instruction: true,
		})
	}

	if f.Role != nil {
		items = filterByRole(items, *f.Role)
	}

	result.Entries = make([]HistoryEntryDTO, 0, len(items))
	for _, it := range items {
		result.Entries = append(result.Entries, it.entry)
		result.RoleDistribution[it.entry.Role]++

		result.Totals.Events++
		if it.instruction {
			result.Totals.InstructionActs++
			result.Totals.Presences++
			continue
		}
		if it.status == attendance.StatusPresent {
			result.Totals.Participations++
		}
		if it.status.IsPresence() {
			result.Totals.Presences++
		} else {
			result.Totals.Absences++
		}
		if it.status == attendance.StatusVolunteerExtra || it.status == attendance.StatusVolunteerSimple {
			result.Totals.VolunteerActs++
		}
	}

	sortHistoryEntries(result.Entries)

	for _, sr := range carenciaHistory {
		result.Carencia = append(result.Carencia, CarenciaEntryDTO{
			Month:      sr.Window.Month,
			Year:       sr.Window.Year,
			Percentage: sr.Record.Computed.Percentage.Float64(),
			Deficient:  sr.Record.IsDeficient(),
			Workflow:   string(sr.Record.Status),
		})
	}

	storeCache(ctx, h.cache, key, result)
	return result, nil
}

// activityNames memoizes activity name lookups for the report lifetime.
type activityNames struct {
	catalog catalog.Lookup
	byID    map[int64]string
	missing map[int64]struct{}
}

func newActivityNames(cat catalog.Lookup) *activityNames {
	return &activityNames{
		catalog: cat,
		byID:    map[int64]string{},
		missing: map[int64]struct{}{},
	}
}

// resolve returns the activity name or shared.ErrActivityNotFound.
func (n *activityNames) resolve(ctx context.Context, activityID int64) (string, error) {
	if name, ok := n.byID[activityID]; ok {
		return name, nil
	}
	if _, ok := n.missing[activityID]; ok {
		return "", shared.ErrActivityNotFound
	}

	act, err := n.catalog.GetActivity(ctx, activityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			n.missing[activityID] = struct{}{}
		}
		return "", err
	}
	n.byID[activityID] = act.Name
	return act.Name, nil
}

// filterByRole keeps items whose role label matches, case-insensitively.
func filterByRole(items []historyItem, role string) []historyItem {
	kept := items[:0]
	for _, it := range items {
		if strings.EqualFold(it.entry.Role, role) {
			kept = append(kept, it)
		}
	}
	return kept
}

// sortHistoryEntries orders the timeline newest first; equal dates order by
// activity name (case-insensitive) for determinism.
func sortHistoryEntries(entries []HistoryEntryDTO) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return strings.ToLower(a.ActivityName) < strings.ToLower(b.ActivityName)
	})
}
