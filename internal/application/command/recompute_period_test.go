package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
	"github.com/presenca-hub/presenca-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeStore struct {
	events []attendance.Event
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

func (s *fakeStore) EventsByStudent(_ context.Context, studentID int64, _, _ *time.Time) ([]attendance.Event, error) {
	var out []attendance.Event
	for _, ev := range s.events {
		if ev.StudentID == studentID {
			out = append(out, ev)
		}
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

func (s *fakeStore) InstructionAssignmentsByStudent(_ context.Context, _ int64, _, _ *time.Time) ([]attendance.InstructionAssignment, error) {
	return nil, nil
}

type fakeCatalog struct {
	turmas     map[int64]*catalog.Turma
	activities []*catalog.Activity
}

func (c *fakeCatalog) GetCourse(_ context.Context, _ int64) (*catalog.Course, error) {
	return nil, shared.ErrCourseNotFound
}

func (c *fakeCatalog) GetTurma(_ context.Context, id int64) (*catalog.Turma, error) {
	if t, ok := c.turmas[id]; ok {
		return t, nil
	}
	return nil, shared.ErrTurmaNotFound
}

func (c *fakeCatalog) GetStudent(_ context.Context, _ int64) (*catalog.Student, error) {
	return nil, shared.ErrStudentNotFound
}

func (c *fakeCatalog) GetActivity(_ context.Context, _ int64) (*catalog.Activity, error) {
	return nil, shared.ErrActivityNotFound
}

func (c *fakeCatalog) ListActivities(_ context.Context, filter catalog.ActivityFilter) ([]*catalog.Activity, error) {
	var out []*catalog.Activity
	for _, a := range c.activities {
		if filter.TurmaID != nil && a.TurmaID != *filter.TurmaID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *fakeCatalog) StudentsByTurma(_ context.Context, _ int64) ([]*catalog.Student, error) {
	return nil, nil
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

type fakeCarenciaRepo struct {
	periods map[string]*carencia.Period // keyed by Period.Key()
	records map[string][]*carencia.Record

	replaceCalls int
	staleVersion bool
}

func (r *fakeCarenciaRepo) key(turmaID int64, window shared.MonthYear) string {
	period, _ := carencia.NewPeriod(turmaID, window, carencia.DefaultMinimumPercentage)
	return period.Key()
}

func (r *fakeCarenciaRepo) GetPeriod(_ context.Context, turmaID int64, window shared.MonthYear) (*carencia.Period, error) {
	if p, ok := r.periods[r.key(turmaID, window)]; ok {
		return p, nil
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
	if r.periods == nil {
		r.periods = make(map[string]*carencia.Period)
	}
	r.periods[p.Key()] = p
	return p, nil
}

func (r *fakeCarenciaRepo) UpdateThreshold(_ context.Context, periodID string, minimum shared.Percentage) error {
	for _, p := range r.periods {
		if p.ID == periodID {
			p.MinimumPercentage = minimum
			return nil
		}
	}
	return shared.ErrPeriodNotFound
}

func (r *fakeCarenciaRepo) RecordsForPeriod(_ context.Context, periodID string) ([]*carencia.Record, error) {
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

func (r *fakeCarenciaRepo) ReplaceForPeriod(_ context.Context, periodID string, expectedVersion int64, records []*carencia.Record) error {
	r.replaceCalls++
	if r.staleVersion {
		return shared.ErrPeriodVersionStale
	}
	for _, p := range r.periods {
		if p.ID == periodID {
			if p.Version != expectedVersion {
				return shared.ErrPeriodVersionStale
			}
			p.Version++
		}
	}
	if r.records == nil {
		r.records = make(map[string][]*carencia.Record)
	}
	r.records[periodID] = records
	return nil
}

func (r *fakeCarenciaRepo) UpdateWorkflow(_ context.Context, _ *carencia.Record) error {
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	acquired []string
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, periodKey string, _ time.Duration) (bool, error) {
	if l.held[periodKey] {
		return false, nil
	}
	l.acquired = append(l.acquired, periodKey)
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, periodKey string) error {
	l.released = append(l.released, periodKey)
	return nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type recomputeFixture struct {
	store     *fakeStore
	catalog   *fakeCatalog
	repo      *fakeCarenciaRepo
	locker    *fakeLocker
	publisher *capturingPublisher
	handler   *RecomputePeriodHandler
}

func newRecomputeFixture() *recomputeFixture {
	f := &recomputeFixture{
		store: &fakeStore{},
		catalog: &fakeCatalog{
			turmas: map[int64]*catalog.Turma{
				1: {ID: 1, CourseID: 1, Name: "Turma A", Status: catalog.TurmaStatusActive},
			},
			activities: []*catalog.Activity{
				{ID: 10, TurmaID: 1, Name: "Aula 1"},
				{ID: 11, TurmaID: 1, Name: "Aula 2"},
				{ID: 12, TurmaID: 1, Name: "Aula 3"},
				{ID: 13, TurmaID: 1, Name: "Aula 4"},
			},
		},
		repo:      &fakeCarenciaRepo{},
		locker:    &fakeLocker{},
		publisher: &capturingPublisher{},
	}
	// One retry attempt keeps lock-conflict tests fast.
	f.handler = NewRecomputePeriodHandler(f.store, f.catalog, f.repo, f.locker, f.publisher, nil,
		RecomputePeriodConfig{LockRetrier: retry.New(retry.WithMaxAttempts(1))})
	return f
}

func (f *recomputeFixture) addMonthEvents(studentID int64, statuses ...attendance.Status) {
	for i, st := range statuses {
		f.store.events = append(f.store.events, attendance.Event{
			StudentID:  studentID,
			TurmaID:    1,
			ActivityID: int64(10 + i),
			Date:       time.Date(2025, 10, 2+i, 0, 0, 0, 0, time.UTC),
			Status:     st,
		})
	}
}

var octoberCmd = RecomputePeriodCommand{TurmaID: 1, Month: 10, Year: 2025}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecomputePeriod_ClassifiesStudents(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusPresent, attendance.StatusPresent, attendance.StatusAbsent)
	f.addMonthEvents(2, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	result, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRecords)
	assert.Equal(t, 1, result.ClearedCount)
	assert.Equal(t, 1, result.DeficientCount)
	assert.Empty(t, result.Warnings)

	records := f.repo.records[result.PeriodID]
	require.Len(t, records, 2)
	assert.True(t, records[0].Computed.Cleared)
	assert.Equal(t, shared.Percentage(75.0), records[0].Computed.Percentage)
	assert.False(t, records[1].Computed.Cleared)
	assert.Equal(t, carencia.WorkflowPending, records[1].Status)
}

func TestRecomputePeriod_IsIdempotentOnUnchangedInput(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusAbsent)

	first, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)
	second, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	assert.Equal(t, first.PeriodID, second.PeriodID)
	assert.Equal(t, first.TotalRecords, second.TotalRecords)
	assert.Equal(t, first.DeficientCount, second.DeficientCount)

	firstRec := f.repo.records[first.PeriodID][0]
	assert.Equal(t, shared.Percentage(50.0), firstRec.Computed.Percentage)
	assert.Equal(t, 2, f.repo.replaceCalls)
}

func TestRecomputePeriod_PreservesManualWorkflowByDefault(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	first, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	rec := f.repo.records[first.PeriodID][0]
	require.NoError(t, rec.StartFollowUp("em contato com a família", time.Now().UTC()))

	second, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)
	assert.Equal(t, 1, second.PreservedCount)

	preserved := f.repo.records[second.PeriodID][0]
	assert.Equal(t, carencia.WorkflowInProgress, preserved.Status)
	assert.Equal(t, "em contato com a família", preserved.Notes)
	assert.Equal(t, carencia.ProvenanceManual, preserved.Provenance)
}

func TestRecomputePeriod_DiscardManualStateResets(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	first, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)
	rec := f.repo.records[first.PeriodID][0]
	require.NoError(t, rec.StartFollowUp("acompanhando", time.Now().UTC()))

	cmd := octoberCmd
	cmd.DiscardManualState = true
	second, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, 0, second.PreservedCount)
	reset := f.repo.records[second.PeriodID][0]
	assert.Equal(t, carencia.WorkflowPending, reset.Status)
	assert.Empty(t, reset.Notes)
}

func TestRecomputePeriod_UnknownActivityBecomesWarning(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusPresent)
	// Event against an activity the catalog does not know.
	f.store.events = append(f.store.events, attendance.Event{
		StudentID:  1,
		TurmaID:    1,
		ActivityID: 999,
		Date:       time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC),
		Status:     attendance.StatusPresent,
	})

	result, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Reason, "activity not found")

	// The skipped event contributes to no counter.
	rec := f.repo.records[result.PeriodID][0]
	assert.Equal(t, 2, rec.Computed.TotalActivities)
}

func TestRecomputePeriod_UnknownStatusBecomesWarning(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.Status("X"))

	result, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Reason, "unknown status")

	rec := f.repo.records[result.PeriodID][0]
	assert.Equal(t, 1, rec.Computed.TotalActivities)
}

func TestRecomputePeriod_UnknownTurma(t *testing.T) {
	f := newRecomputeFixture()

	_, err := f.handler.Handle(context.Background(), RecomputePeriodCommand{TurmaID: 99, Month: 10, Year: 2025})

	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, f.locker.acquired)
}

func TestRecomputePeriod_Validation(t *testing.T) {
	f := newRecomputeFixture()

	_, err := f.handler.Handle(context.Background(), RecomputePeriodCommand{TurmaID: 0, Month: 10, Year: 2025})
	assert.True(t, shared.IsValidation(err))

	_, err = f.handler.Handle(context.Background(), RecomputePeriodCommand{TurmaID: 1, Month: 13, Year: 2025})
	assert.True(t, shared.IsValidation(err))
}

func TestRecomputePeriod_LockConflict(t *testing.T) {
	f := newRecomputeFixture()
	f.locker.held = map[string]bool{"1:2025-10": true}

	_, err := f.handler.Handle(context.Background(), octoberCmd)

	assert.True(t, shared.IsConcurrencyConflict(err))
	assert.Equal(t, 0, f.repo.replaceCalls)
}

func TestRecomputePeriod_LockIsReleasedAfterSuccess(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent)

	_, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	assert.Equal(t, []string{"1:2025-10"}, f.locker.acquired)
	assert.Equal(t, []string{"1:2025-10"}, f.locker.released)
}

func TestRecomputePeriod_StaleVersionSurfacesConflict(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent)
	f.repo.staleVersion = true

	_, err := f.handler.Handle(context.Background(), octoberCmd)

	assert.True(t, shared.IsConcurrencyConflict(err))
	// The lock still gets released on the failure path.
	assert.Len(t, f.locker.released, 1)
}

func TestRecomputePeriod_EmptyMonthYieldsEmptySnapshot(t *testing.T) {
	f := newRecomputeFixture()

	result, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalRecords)
	assert.Empty(t, f.repo.records[result.PeriodID])
	assert.Equal(t, 1, f.repo.replaceCalls)
}

func TestRecomputePeriod_PublishesEvents(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	_, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	// The recompute event plus one pending event for the deficient student.
	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, shared.EventPeriodRecomputed, f.publisher.events[0].EventType())

	pending, ok := f.publisher.events[1].(shared.CarenciaPendingEvent)
	require.True(t, ok)
	assert.Equal(t, int64(1), pending.StudentID)
	assert.Equal(t, 25.0, pending.Percentage)
	assert.Equal(t, 75.0, pending.Threshold)
}

func TestRecomputePeriod_PendingEventNotRepeatedForKnownDeficiency(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	_, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)
	_, err = f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	var pendingCount int
	for _, ev := range f.publisher.events {
		if ev.EventType() == shared.EventCarenciaPending {
			pendingCount++
		}
	}
	assert.Equal(t, 1, pendingCount)
}

func TestRecomputePeriod_PublishesWarningEventOnSkippedRows(t *testing.T) {
	f := newRecomputeFixture()
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusPresent)
	f.store.events = append(f.store.events, attendance.Event{
		StudentID:  1,
		TurmaID:    1,
		ActivityID: 999,
		Date:       time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC),
		Status:     attendance.StatusPresent,
	})

	_, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	last := f.publisher.events[len(f.publisher.events)-1]
	warning, ok := last.(shared.AggregationWarningEvent)
	require.True(t, ok)
	assert.Equal(t, int64(1), warning.TurmaID)
	assert.Equal(t, 1, warning.Skipped)
	assert.Contains(t, warning.Reason, "activity not found")
}

func TestRecomputePeriod_ConfiguredDefaultThreshold(t *testing.T) {
	f := newRecomputeFixture()
	f.handler = NewRecomputePeriodHandler(f.store, f.catalog, f.repo, f.locker, f.publisher, nil,
		RecomputePeriodConfig{
			LockRetrier:              retry.New(retry.WithMaxAttempts(1)),
			DefaultMinimumPercentage: 50,
		})
	// 50% presence: deficient against the stock 75% threshold, cleared at 50%.
	f.addMonthEvents(1, attendance.StatusPresent, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent)

	result, err := f.handler.Handle(context.Background(), octoberCmd)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ClearedCount)
	assert.Equal(t, 0, result.DeficientCount)

	period, err := f.repo.GetPeriod(context.Background(), 1, shared.MonthYear{Month: 10, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, shared.Percentage(50), period.MinimumPercentage)
}

func TestRecomputePeriod_LockConflictIsRecomputeInProgress(t *testing.T) {
	f := newRecomputeFixture()
	f.locker.held = map[string]bool{"1:2025-10": true}

	_, err := f.handler.Handle(context.Background(), octoberCmd)

	assert.ErrorIs(t, err, shared.ErrRecomputeInProgress)
}
