// Package postgres implements PostgreSQL persistence for the attendance engine.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Store for PostgreSQL. The engine
// only reads attendance data; registration is owned by the upstream system
// writing into the same tables.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

const attendanceEventColumns = "student_id, turma_id, activity_id, event_date, status"

// EventsByTurmaAndRange returns events of a turma with date in [from, to).
func (r *AttendanceRepository) EventsByTurmaAndRange(ctx context.Context, turmaID int64, from, to time.Time) ([]attendance.Event, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM attendance_events
		WHERE turma_id = $1 AND event_date >= $2 AND event_date < $3
		ORDER BY event_date, student_id, activity_id
	`, attendanceEventColumns), turmaID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query turma events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsByStudent returns all events of one student, optionally bounded by date.
func (r *AttendanceRepository) EventsByStudent(ctx context.Context, studentID int64, from, to *time.Time) ([]attendance.Event, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	query := strings.Builder{}
	fmt.Fprintf(&query, `
		SELECT %s
		FROM attendance_events
		WHERE student_id = $1
	`, attendanceEventColumns)

	args := []interface{}{studentID}
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&query, " AND event_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		fmt.Fprintf(&query, " AND event_date <= $%d", len(args))
	}
	query.WriteString(" ORDER BY event_date, activity_id")

	rows, err := r.conn.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query student events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsByActivity returns all events recorded against one activity.
func (r *AttendanceRepository) EventsByActivity(ctx context.Context, activityID int64) ([]attendance.Event, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM attendance_events
		WHERE activity_id = $1
		ORDER BY student_id, event_date
	`, attendanceEventColumns), activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// InstructionAssignmentsByStudent returns the instruction history of a student.
func (r *AttendanceRepository) InstructionAssignmentsByStudent(ctx context.Context, studentID int64, from, to *time.Time) ([]attendance.InstructionAssignment, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	query := strings.Builder{}
	query.WriteString(`
		SELECT student_id, activity_id, assignment_date, role
		FROM instruction_assignments
		WHERE student_id = $1
	`)

	args := []interface{}{studentID}
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&query, " AND assignment_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		fmt.Fprintf(&query, " AND assignment_date <= $%d", len(args))
	}
	query.WriteString(" ORDER BY assignment_date, activity_id")

	rows, err := r.conn.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruction assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]attendance.InstructionAssignment, 0)
	for rows.Next() {
		var as attendance.InstructionAssignment
		var role string

		if err := rows.Scan(&as.StudentID, &as.ActivityID, &as.Date, &role); err != nil {
			return nil, fmt.Errorf("failed to scan instruction assignment: %w", err)
		}
		as.Role = attendance.InstructionRole(role)
		assignments = append(assignments, as)
	}

	return assignments, rows.Err()
}

// scanEvents drains event rows. Status codes pass through unvalidated; the
// aggregation layer routes unknown codes to its warning channel.
func scanEvents(rows pgx.Rows) ([]attendance.Event, error) {
	events := make([]attendance.Event, 0)
	for rows.Next() {
		var ev attendance.Event
		var status string

		if err := rows.Scan(&ev.StudentID, &ev.TurmaID, &ev.ActivityID, &ev.Date, &status); err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}
		ev.Status = attendance.Status(status)
		events = append(events, ev)
	}

	return events, rows.Err()
}
