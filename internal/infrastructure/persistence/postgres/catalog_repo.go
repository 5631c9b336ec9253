// Package postgres implements PostgreSQL persistence for the attendance engine.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/presenca-hub/presenca-engine/internal/domain/catalog"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG LOOKUP IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements catalog.Lookup for PostgreSQL. Strictly
// read-only: catalog CRUD belongs to the upstream system.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// GetCourse returns a course by ID.
func (r *CatalogRepository) GetCourse(ctx context.Context, id int64) (*catalog.Course, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	var course catalog.Course

	err := r.conn.QueryRow(ctx, `
		SELECT id, name FROM courses WHERE id = $1
	`, id).Scan(&course.ID, &course.Name)

	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return &course, nil
}

// GetTurma returns a turma by ID.
func (r *CatalogRepository) GetTurma(ctx context.Context, id int64) (*catalog.Turma, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	var turma catalog.Turma
	var status string

	err := r.conn.QueryRow(ctx, `
		SELECT id, course_id, name, status FROM turmas WHERE id = $1
	`, id).Scan(&turma.ID, &turma.CourseID, &turma.Name, &status)

	if IsNoRows(err) {
		return nil, shared.ErrTurmaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get turma: %w", err)
	}

	turma.Status = catalog.TurmaStatus(status)
	return &turma, nil
}

// GetStudent returns a student by ID.
func (r *CatalogRepository) GetStudent(ctx context.Context, id int64) (*catalog.Student, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	var student catalog.Student

	err := r.conn.QueryRow(ctx, `
		SELECT id, name FROM students WHERE id = $1
	`, id).Scan(&student.ID, &student.Name)

	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return &student, nil
}

const activityColumns = "id, turma_id, name, type, status, data_inicio, data_fim, data_real_fim"

// GetActivity returns an activity by ID.
func (r *CatalogRepository) GetActivity(ctx context.Context, id int64) (*catalog.Activity, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM activities WHERE id = $1
	`, activityColumns), id)

	act, err := scanActivity(row)
	if IsNoRows(err) {
		return nil, shared.ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return act, nil
}

// ListActivities returns activities matching the filter, unordered.
func (r *CatalogRepository) ListActivities(ctx context.Context, filter catalog.ActivityFilter) ([]*catalog.Activity, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	query := strings.Builder{}
	fmt.Fprintf(&query, "SELECT a.%s FROM activities a", strings.ReplaceAll(activityColumns, ", ", ", a."))

	var args []interface{}
	var conds []string

	if filter.CourseID != nil {
		query.WriteString(" JOIN turmas t ON t.id = a.turma_id")
		args = append(args, *filter.CourseID)
		conds = append(conds, fmt.Sprintf("t.course_id = $%d", len(args)))
	}
	if filter.TurmaID != nil {
		args = append(args, *filter.TurmaID)
		conds = append(conds, fmt.Sprintf("a.turma_id = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conds = append(conds, fmt.Sprintf("a.type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conds = append(conds, fmt.Sprintf("a.data_inicio >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conds = append(conds, fmt.Sprintf("a.data_inicio <= $%d", len(args)))
	}

	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	rows, err := r.conn.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*catalog.Activity, 0)
	for rows.Next() {
		act, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, act)
	}

	return activities, rows.Err()
}

// StudentsByTurma returns the students enrolled in a turma.
func (r *CatalogRepository) StudentsByTurma(ctx context.Context, turmaID int64) ([]*catalog.Student, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT s.id, s.name
		FROM students s
		JOIN turma_students ts ON ts.student_id = s.id
		WHERE ts.turma_id = $1
		ORDER BY s.id
	`, turmaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turma students: %w", err)
	}
	defer rows.Close()

	students := make([]*catalog.Student, 0)
	for rows.Next() {
		var student catalog.Student
		if err := rows.Scan(&student.ID, &student.Name); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, &student)
	}

	return students, rows.Err()
}

// ActiveTurmas returns turmas currently running.
func (r *CatalogRepository) ActiveTurmas(ctx context.Context) ([]*catalog.Turma, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT id, course_id, name, status
		FROM turmas
		WHERE status = $1
		ORDER BY id
	`, string(catalog.TurmaStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query active turmas: %w", err)
	}
	defer rows.Close()

	turmas := make([]*catalog.Turma, 0)
	for rows.Next() {
		var turma catalog.Turma
		var status string

		if err := rows.Scan(&turma.ID, &turma.CourseID, &turma.Name, &status); err != nil {
			return nil, fmt.Errorf("failed to scan turma: %w", err)
		}
		turma.Status = catalog.TurmaStatus(status)
		turmas = append(turmas, &turma)
	}

	return turmas, rows.Err()
}

// rowScanner is the subset of pgx.Row/pgx.Rows needed by scanActivity.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*catalog.Activity, error) {
	var act catalog.Activity
	var status string

	err := row.Scan(
		&act.ID,
		&act.TurmaID,
		&act.Name,
		&act.Type,
		&status,
		&act.DataInicio,
		&act.DataFim,
		&act.DataRealFim,
	)
	if err != nil {
		return nil, err
	}

	act.Status = catalog.ActivityStatus(status)
	return &act, nil
}
