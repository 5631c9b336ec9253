package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ValidParams(t *testing.T) {
	f := Normalize(map[string]string{
		"curso":       "5",
		"data_inicio": "2025-10-01",
	})

	require.NotNil(t, f.CourseID)
	assert.Equal(t, int64(5), *f.CourseID)
	require.NotNil(t, f.DateFrom)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)

	assert.Nil(t, f.TurmaID)
	assert.Nil(t, f.StudentID)
	assert.Nil(t, f.DateTo)
}

func TestNormalize_EmptyValuesAreUnset(t *testing.T) {
	f := Normalize(map[string]string{
		"curso":          "",
		"turma":          "   ",
		"tipo_atividade": "",
	})

	assert.Nil(t, f.CourseID)
	assert.Nil(t, f.TurmaID)
	assert.Nil(t, f.ActivityType)
}

func TestNormalize_JunkValuesAreUnset(t *testing.T) {
	f := Normalize(map[string]string{
		"curso":       "abc",
		"turma":       "12.5",
		"aluno":       "-3",
		"atividade":   "0",
		"data_inicio": "01/10/2025",
		"data_fim":    "not-a-date",
	})

	assert.Nil(t, f.CourseID)
	assert.Nil(t, f.TurmaID)
	assert.Nil(t, f.StudentID)
	assert.Nil(t, f.ActivityID)
	assert.Nil(t, f.DateFrom)
	assert.Nil(t, f.DateTo)
}

func TestNormalize_StringsAreTrimmed(t *testing.T) {
	f := Normalize(map[string]string{
		"tipo_atividade":   "  instrução ",
		"status_atividade": "realizada",
		"funcao":           " Instrutor Chefe ",
	})

	require.NotNil(t, f.ActivityType)
	assert.Equal(t, "instrução", *f.ActivityType)
	require.NotNil(t, f.ActivityStatus)
	assert.Equal(t, "realizada", *f.ActivityStatus)
	require.NotNil(t, f.Role)
	assert.Equal(t, "Instrutor Chefe", *f.Role)
}

func TestNormalize_NilAndUnknownKeys(t *testing.T) {
	assert.Equal(t, ReportFilter{}, Normalize(nil))
	assert.Equal(t, ReportFilter{}, Normalize(map[string]string{}))

	// Unknown keys are ignored, not an error.
	f := Normalize(map[string]string{"pagina": "2", "ordenar": "nome"})
	assert.Equal(t, ReportFilter{}, f)
}

func TestReportFilter_Has(t *testing.T) {
	assert.False(t, ReportFilter{}.HasTurma())
	assert.False(t, ReportFilter{}.HasStudent())

	f := Normalize(map[string]string{"turma": "3", "aluno": "9"})
	assert.True(t, f.HasTurma())
	assert.True(t, f.HasStudent())
}
