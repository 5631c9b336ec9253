// Package filter converts loosely-typed request parameters into the typed
// report filter shared by every report variant. Normalization is permissive
// by contract: a value that cannot be interpreted degrades to "unset" instead
// of propagating an error, matching the legacy request handling.
package filter

import (
	"strconv"
	"strings"
	"time"
)

// Recognized request parameter names. These are the legacy query-string keys
// the presentation layer forwards untouched.
const (
	ParamCourse         = "curso"
	ParamTurma          = "turma"
	ParamStudent        = "aluno"
	ParamActivity       = "atividade"
	ParamActivityType   = "tipo_atividade"
	ParamActivityStatus = "status_atividade"
	ParamRole           = "funcao"
	ParamDateFrom       = "data_inicio"
	ParamDateTo         = "data_fim"
)

// DateLayout is the wire format of filter dates.
const DateLayout = "2006-01-02"

// ReportFilter is the typed, optional-field filter built once per report
// request and never mutated afterwards. Nil means "unset".
type ReportFilter struct {
	CourseID       *int64
	TurmaID        *int64
	StudentID      *int64
	ActivityID     *int64
	ActivityType   *string
	ActivityStatus *string
	Role           *string
	DateFrom       *time.Time
	DateTo         *time.Time
}

// HasTurma reports whether the filter pins a turma.
func (f ReportFilter) HasTurma() bool { return f.TurmaID != nil }

// HasStudent reports whether the filter pins a student.
func (f ReportFilter) HasStudent() bool { return f.StudentID != nil }

// Normalize builds a ReportFilter from raw string parameters. It is pure and
// total: absent keys, empty strings, and unparsable values all normalize to
// nil fields; it never returns an error.
func Normalize(params map[string]string) ReportFilter {
	return ReportFilter{
		CourseID:       normalizeID(params[ParamCourse]),
		TurmaID:        normalizeID(params[ParamTurma]),
		StudentID:      normalizeID(params[ParamStudent]),
		ActivityID:     normalizeID(params[ParamActivity]),
		ActivityType:   normalizeString(params[ParamActivityType]),
		ActivityStatus: normalizeString(params[ParamActivityStatus]),
		Role:           normalizeString(params[ParamRole]),
		DateFrom:       normalizeDate(params[ParamDateFrom]),
		DateTo:         normalizeDate(params[ParamDateTo]),
	}
}

// normalizeID parses a positive integer ID; anything else is unset.
func normalizeID(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// normalizeString trims whitespace; empty becomes unset.
func normalizeString(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

// normalizeDate parses an ISO date; anything else is unset.
func normalizeDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
