package query

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// In-memory fakes backing the report handler tests.

type fakeCatalog struct {
	courses    map[int64]*catalog.Course
	turmas     map[int64]*catalog.Turma
	students   map[int64]*catalog.Student
	activities map[int64]*catalog.Activity
	enrollment map[int64][]int64 // turmaID -> studentIDs
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		courses:    map[int64]*catalog.Course{},
		turmas:     map[int64]*catalog.Turma{},
		students:   map[int64]*catalog.Student{},
		activities: map[int64]*catalog.Activity{},
		enrollment: map[int64][]int64{},
	}
}

func (c *fakeCatalog) GetCourse(_ context.Context, id int64) (*catalog.Course, error) {
	if v, ok := c.courses[id]; ok {
		return v, nil
	}
	return nil, shared.ErrCourseNotFound
}

func (c *fakeCatalog) GetTurma(_ context.Context, id int64) (*catalog.Turma, error) {
	if v, ok := c.turmas[id]; ok {
		return v, nil
	}
	return nil, shared.ErrTurmaNotFound
}

func (c *fakeCatalog) GetStudent(_ context.Context, id int64) (*catalog.Student, error) {
	if v, ok := c.students[id]; ok {
		return v, nil
	}
	return nil, shared.ErrStudentNotFound
}

func (c *fakeCatalog) GetActivity(_ context.Context, id int64) (*catalog.Activity, error) {
	if v, ok := c.activities[id]; ok {
		return v, nil
	}
	return nil, shared.ErrActivityNotFound
}

func (c *fakeCatalog) ListActivities(_ context.Context, f catalog.ActivityFilter) ([]*catalog.Activity, error) {
	var out []*catalog.Activity
	for _, a := range c.activities {
		if f.TurmaID != nil && a.TurmaID != *f.TurmaID {
			continue
		}
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Status != nil && string(a.Status) != *f.Status {
			continue
		}
		if f.DateFrom != nil && a.DataInicio.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && a.DataInicio.After(*f.DateTo) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *fakeCatalog) StudentsByTurma(_ context.Context, turmaID int64) ([]*catalog.Student, error) {
	var out []*catalog.Student
	for _, id := range c.enrollment[turmaID] {
		if s, ok := c.students[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ActiveTurmas(_ context.Context) ([]*catalog.Turma, error) {
	var out []*catalog.Turma
	for _, t := range c.turmas {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeStore struct {
	events      []attendance.Event
	assignments []attendance.InstructionAssignment
}

func (s *fakeStore) EventsByTurmaAndRange(_ context.Context, turmaID int64, from, to time.Time) ([]attendance.Event, error) {
	var out []attendance.Event
	for _, ev := range s.events {
		if ev.TurmaID == turmaID && !ev.Date.Before(from) && ev.Date.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) EventsByStudent(_ context.Context, studentID int64, from, to *time.Time) ([]attendance.Event, error) {
	var out []attendance.Event
	for _, ev := range s.events {
		if ev.StudentID != studentID {
			continue
		}
		if from != nil && ev.Date.Before(*from) {
			continue
		}
		if to != nil && ev.Date.After(*to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *fakeStore) EventsByActivity(_ context.Context, activityID int64) ([]attendance.Event, error) {
	var out []attendance.Event
	for _, ev := range s.events {
		if ev.ActivityID == activityID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) InstructionAssignmentsByStudent(_ context.Context, studentID int64, from, to *time.Time) ([]attendance.InstructionAssignment, error) {
	var out []attendance.InstructionAssignment
	for _, as := range s.assignments {
		if as.StudentID != studentID {
			continue
		}
		if from != nil && as.Date.Before(*from) {
			continue
		}
		if to != nil && as.Date.After(*to) {
			continue
		}
		out = append(out, as)
	}
	return out, nil
}

type fakeCarenciaRepo struct {
	periods map[string]*carencia.Period
	records map[string][]*carencia.Record

	// Injected failures, simulating an unreachable database.
	periodErr  error
	recordsErr error
}

func newFakeCarenciaRepo() *fakeCarenciaRepo {
	return &fakeCarenciaRepo{
		periods: map[string]*carencia.Period{},
		records: map[string][]*carencia.Record{},
	}
}

func (r *fakeCarenciaRepo) GetPeriod(_ context.Context, turmaID int64, window shared.MonthYear) (*carencia.Period, error) {
	if r.periodErr != nil {
		return nil, r.periodErr
	}
	for _, p := range r.periods {
		if p.TurmaID == turmaID && p.Window == window {
			return p, nil
		}
	}
	return nil, shared.ErrPeriodNotFound
}

func (r *fakeCarenciaRepo) EnsurePeriod(ctx context.Context, turmaID int64, window shared.MonthYear, minimum shared.Percentage) (*carencia.Period, error) {
	if p, err := r.GetPeriod(ctx, turmaID, window); err == nil {
		return p, nil
	}
	p, err := carencia.NewPeriod(turmaID, window, minimum)
	if err != nil {
		return nil, err
	}
	r.periods[p.ID] = p
	return p, nil
}

func (r *fakeCarenciaRepo) UpdateThreshold(_ context.Context, periodID string, minimum shared.Percentage) error {
	if p, ok := r.periods[periodID]; ok {
		p.MinimumPercentage = minimum
		return nil
	}
	return shared.ErrPeriodNotFound
}

func (r *fakeCarenciaRepo) RecordsForPeriod(_ context.Context, periodID string) ([]*carencia.Record, error) {
	if r.recordsErr != nil {
		return nil, r.recordsErr
	}
	return r.records[periodID], nil
}

func (r *fakeCarenciaRepo) GetRecord(_ context.Context, recordID string) (*carencia.Record, error) {
	for _, recs := range r.records {
		for _, rec := range recs {
			if rec.ID == recordID {
				return rec, nil
			}
		}
	}
	return nil, shared.ErrRecordNotFound
}

func (r *fakeCarenciaRepo) RecordsForStudent(_ context.Context, turmaID, studentID int64) ([]carencia.StudentRecord, error) {
	if r.recordsErr != nil {
		return nil, r.recordsErr
	}
	var out []carencia.StudentRecord
	for _, p := range r.periods {
		if p.TurmaID != turmaID {
			continue
		}
		for _, rec := range r.records[p.ID] {
			if rec.StudentID == studentID {
				out = append(out, carencia.StudentRecord{Window: p.Window, Record: rec})
			}
		}
	}
	return out, nil
}

func (r *fakeCarenciaRepo) ReplaceForPeriod(_ context.Context, periodID string, _ int64, records []*carencia.Record) error {
	r.records[periodID] = records
	return nil
}

func (r *fakeCarenciaRepo) UpdateWorkflow(_ context.Context, _ *carencia.Record) error {
	return nil
}

// fakeCache stores JSON blobs and counts hits so tests can assert the cache
// short-circuits assembly.
type fakeCache struct {
	entries map[string][]byte
	gets    int
	hits    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return errors.New("miss")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return err
	}
	c.hits++
	return nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.sets++
	return nil
}
