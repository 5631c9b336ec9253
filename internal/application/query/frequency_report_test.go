package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

type frequencyFixture struct {
	catalog *fakeCatalog
	store   *fakeStore
	repo    *fakeCarenciaRepo
	handler *FrequencyHandler
}

func newFrequencyFixture() *frequencyFixture {
	f := &frequencyFixture{
		catalog: newFakeCatalog(),
		store:   &fakeStore{},
		repo:    newFakeCarenciaRepo(),
	}
	f.catalog.turmas[1] = &catalog.Turma{ID: 1, CourseID: 1, Name: "Turma A", Status: catalog.TurmaStatusActive}
	f.catalog.students[1] = &catalog.Student{ID: 1, Name: "Ana"}
	f.catalog.students[2] = &catalog.Student{ID: 2, Name: "Bruno"}
	f.catalog.enrollment[1] = []int64{1, 2}
	f.handler = NewFrequencyHandler(f.catalog, f.store, f.repo, nil)
	return f
}

func (f *frequencyFixture) addEvents(studentID int64, month int, statuses ...attendance.Status) {
	for i, st := range statuses {
		f.store.events = append(f.store.events, attendance.Event{
			StudentID:  studentID,
			TurmaID:    1,
			ActivityID: int64(10 + i),
			Date:       time.Date(2025, time.Month(month), 2+i, 0, 0, 0, 0, time.UTC),
			Status:     st,
		})
	}
}

func TestFrequency_RequiresTurma(t *testing.T) {
	f := newFrequencyFixture()

	_, err := f.handler.Handle(context.Background(), FrequencyQuery{})
	assert.True(t, shared.IsValidation(err))

	_, err = f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "junk"}})
	assert.True(t, shared.IsValidation(err))
}

func TestFrequency_FallbackComputesFromEvents(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent, attendance.StatusPresent, attendance.StatusPresent, attendance.StatusAbsent)
	f.addEvents(2, 10, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	result, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	ana := result.Rows[0]
	assert.Equal(t, "Ana", ana.StudentName)
	assert.Equal(t, 3, ana.TotalPresencas)
	assert.Equal(t, 4, ana.TotalAtividades)
	assert.Equal(t, 75.0, ana.Percentual)
	assert.True(t, ana.Liberado)
	assert.False(t, ana.FromSnapshot)
	assert.Empty(t, ana.WorkflowStatus)

	bruno := result.Rows[1]
	assert.Equal(t, 25.0, bruno.Percentual)
	assert.False(t, bruno.Liberado)
	assert.Equal(t, string(carencia.WorkflowPending), bruno.WorkflowStatus)

	assert.Equal(t, 2, result.Summary.TotalStudents)
	assert.Equal(t, 1, result.Summary.DeficientRows)
	assert.Equal(t, 50.0, result.Summary.MediaPercentual)
}

func TestFrequency_PrefersStoredSnapshot(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent)

	// Stored snapshot for October with manual workflow state.
	window := shared.MonthYear{Month: 10, Year: 2025}
	period, err := f.repo.EnsurePeriod(context.Background(), 1, window, carencia.DefaultMinimumPercentage)
	require.NoError(t, err)
	classifier := carencia.NewClassifier()
	records := classifier.Classify(period, map[int64]attendance.StatusCounts{
		1: {Present: 1, Absent: 3},
	}, carencia.ClassifyOptions{})
	require.NoError(t, records[0].StartFollowUp("em acompanhamento pela coordenação", time.Now().UTC()))
	require.NoError(t, f.repo.ReplaceForPeriod(context.Background(), period.ID, period.Version, records))

	result, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	assert.True(t, row.FromSnapshot)
	assert.Equal(t, string(carencia.WorkflowInProgress), row.WorkflowStatus)
	assert.Equal(t, "em acompanhamento pela coordenação", row.Notes)

	// Snapshot and fallback agree numerically on the same events.
	assert.Equal(t, 1, row.TotalPresencas)
	assert.Equal(t, 4, row.TotalAtividades)
	assert.Equal(t, 25.0, row.Percentual)
	assert.Equal(t, 3, row.Carencias)
}

func TestFrequency_SnapshotAndFallbackAgree(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent, attendance.StatusVolunteerExtra, attendance.StatusJustifiedAbsence)

	params := map[string]string{"turma": "1"}
	fallback, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: params})
	require.NoError(t, err)

	window := shared.MonthYear{Month: 10, Year: 2025}
	period, err := f.repo.EnsurePeriod(context.Background(), 1, window, carencia.DefaultMinimumPercentage)
	require.NoError(t, err)
	records := carencia.NewClassifier().Classify(period, map[int64]attendance.StatusCounts{
		1: {Present: 1, VolunteerExtra: 1, Justified: 1},
	}, carencia.ClassifyOptions{})
	require.NoError(t, f.repo.ReplaceForPeriod(context.Background(), period.ID, period.Version, records))

	snapshot, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: params})
	require.NoError(t, err)

	require.Len(t, fallback.Rows, 1)
	require.Len(t, snapshot.Rows, 1)
	assert.Equal(t, fallback.Rows[0].TotalPresencas, snapshot.Rows[0].TotalPresencas)
	assert.Equal(t, fallback.Rows[0].TotalAtividades, snapshot.Rows[0].TotalAtividades)
	assert.Equal(t, fallback.Rows[0].Percentual, snapshot.Rows[0].Percentual)
	assert.Equal(t, fallback.Rows[0].Liberado, snapshot.Rows[0].Liberado)
}

func TestFrequency_OneRowPerStudentPerMonth(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 9, attendance.StatusPresent, attendance.StatusPresent)
	f.addEvents(1, 10, attendance.StatusAbsent, attendance.StatusAbsent)

	result, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, 9, result.Rows[0].Month)
	assert.Equal(t, 100.0, result.Rows[0].Percentual)
	assert.Equal(t, 10, result.Rows[1].Month)
	assert.Equal(t, 0.0, result.Rows[1].Percentual)
	assert.Equal(t, 1, result.Summary.TotalStudents)
	assert.Equal(t, 2, result.Summary.TotalRows)
}

func TestFrequency_StudentFilterNarrowsRows(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent)
	f.addEvents(2, 10, attendance.StatusAbsent)

	result, err := f.handler.Handle(context.Background(), FrequencyQuery{
		Params: map[string]string{"turma": "1", "aluno": "2"},
	})
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(2), result.Rows[0].StudentID)
}

func TestFrequency_UnknownTurma(t *testing.T) {
	f := newFrequencyFixture()

	_, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "9"}})
	assert.True(t, shared.IsNotFound(err))
}

func TestFrequency_EmptyTurmaYieldsEmptyRows(t *testing.T) {
	f := newFrequencyFixture()

	result, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.NoError(t, err)

	assert.Empty(t, result.Rows)
	assert.Equal(t, FrequencySummaryDTO{}, result.Summary)
	assert.Equal(t, "Turma A", result.TurmaName)
}

func TestFrequency_PeriodLookupFailureAborts(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent, attendance.StatusAbsent)
	f.repo.periodErr = errors.New("connection refused")

	_, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
}

func TestFrequency_RecordLookupFailureAborts(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent, attendance.StatusAbsent)

	window := shared.MonthYear{Month: 10, Year: 2025}
	_, err := f.repo.EnsurePeriod(context.Background(), 1, window, carencia.DefaultMinimumPercentage)
	require.NoError(t, err)
	f.repo.recordsErr = errors.New("connection refused")

	_, err = f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
}

func TestFrequency_MissingPeriodStillRendersFallback(t *testing.T) {
	f := newFrequencyFixture()
	f.addEvents(1, 10, attendance.StatusPresent, attendance.StatusAbsent)

	result, err := f.handler.Handle(context.Background(), FrequencyQuery{Params: map[string]string{"turma": "1"}})
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.False(t, result.Rows[0].FromSnapshot)
	assert.Equal(t, carencia.DefaultMinimumPercentage.Float64(), result.Rows[0].PercentualMin)
}
