// Package postgres implements PostgreSQL persistence for the attendance engine.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CARÊNCIA REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CarenciaRepository implements carencia.Repository for PostgreSQL.
type CarenciaRepository struct {
	conn *Connection
}

// NewCarenciaRepository creates a new CarenciaRepository.
func NewCarenciaRepository(conn *Connection) *CarenciaRepository {
	return &CarenciaRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// PERIOD OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

const periodColumns = "id, turma_id, month, year, minimum_percentage, version, created_at, updated_at"

// GetPeriod returns the period for (turma, window).
func (r *CarenciaRepository) GetPeriod(ctx context.Context, turmaID int64, window shared.MonthYear) (*carencia.Period, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM periods WHERE turma_id = $1 AND month = $2 AND year = $3
	`, periodColumns), turmaID, window.Month, window.Year)

	period, err := scanPeriod(row)
	if IsNoRows(err) {
		return nil, shared.ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}

	return period, nil
}

// EnsurePeriod returns the period for (turma, window), creating it with the
// given threshold on first request. Concurrent first requests race on the
// unique constraint; the loser re-reads the winner's row.
func (r *CarenciaRepository) EnsurePeriod(ctx context.Context, turmaID int64, window shared.MonthYear, minimum shared.Percentage) (*carencia.Period, error) {
	period, err := r.GetPeriod(ctx, turmaID, window)
	if err == nil {
		return period, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	created, err := carencia.NewPeriod(turmaID, window, minimum)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	_, err = r.conn.Exec(ctx, `
		INSERT INTO periods (id, turma_id, month, year, minimum_percentage, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		created.ID,
		created.TurmaID,
		created.Window.Month,
		created.Window.Year,
		created.MinimumPercentage.Float64(),
		created.Version,
		created.CreatedAt,
		created.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return r.GetPeriod(ctx, turmaID, window)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert period: %w", err)
	}

	return created, nil
}

// UpdateThreshold persists a threshold change on an existing period.
func (r *CarenciaRepository) UpdateThreshold(ctx context.Context, periodID string, minimum shared.Percentage) error {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	tag, err := r.conn.Exec(ctx, `
		UPDATE periods SET minimum_percentage = $2, updated_at = NOW() WHERE id = $1
	`, periodID, minimum.Float64())
	if err != nil {
		return fmt.Errorf("failed to update threshold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RECORD OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

const recordColumns = `id, period_id, student_id, total_presences, total_activities,
		percentage, deficiency_count, cleared, workflow_status, provenance, notes,
		computed_at, updated_at`

// RecordsForPeriod returns the current record set of a period.
func (r *CarenciaRepository) RecordsForPeriod(ctx context.Context, periodID string) ([]*carencia.Record, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM carencia_records WHERE period_id = $1 ORDER BY student_id
	`, recordColumns), periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query period records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetRecord returns one record by ID.
func (r *CarenciaRepository) GetRecord(ctx context.Context, recordID string) (*carencia.Record, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM carencia_records WHERE id = $1
	`, recordColumns), recordID)

	record, err := scanRecord(row)
	if IsNoRows(err) {
		return nil, shared.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return record, nil
}

// RecordsForStudent returns a student's records across periods of a turma,
// newest window first, each paired with its period window.
func (r *CarenciaRepository) RecordsForStudent(ctx context.Context, turmaID, studentID int64) ([]carencia.StudentRecord, error) {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s, p.month, p.year
		FROM carencia_records r
		JOIN periods p ON p.id = r.period_id
		WHERE p.turma_id = $1 AND r.student_id = $2
		ORDER BY p.year DESC, p.month DESC
	`, qualifyColumns(recordColumns, "r")), turmaID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query student records: %w", err)
	}
	defer rows.Close()

	out := make([]carencia.StudentRecord, 0)
	for rows.Next() {
		sr, err := scanStudentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student record: %w", err)
		}
		out = append(out, sr)
	}

	return out, rows.Err()
}

// ReplaceForPeriod atomically swaps the record set of a period. The version
// check, the delete, and the batch insert commit together; a concurrent
// recompute that already advanced the version makes this call fail with
// shared.ErrPeriodVersionStale.
func (r *CarenciaRepository) ReplaceForPeriod(ctx context.Context, periodID string, expectedVersion int64, records []*carencia.Record) error {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE periods
			SET version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
		`, periodID, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to advance period version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrPeriodVersionStale
		}

		if _, err := tx.Exec(ctx, `DELETE FROM carencia_records WHERE period_id = $1`, periodID); err != nil {
			return fmt.Errorf("failed to clear prior records: %w", err)
		}

		if len(records) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(`
				INSERT INTO carencia_records
				(id, period_id, student_id, total_presences, total_activities,
				 percentage, deficiency_count, cleared, workflow_status, provenance, notes,
				 computed_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`,
				rec.ID,
				rec.PeriodID,
				rec.StudentID,
				rec.Computed.TotalPresences,
				rec.Computed.TotalActivities,
				rec.Computed.Percentage.Float64(),
				rec.Computed.DeficiencyCount,
				rec.Computed.Cleared,
				string(rec.Status),
				string(rec.Provenance),
				rec.Notes,
				rec.CreatedAt,
				rec.UpdatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range records {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		return nil
	})
}

// UpdateWorkflow persists the workflow section of a record. Cleared is updated
// too: a manual resolution forces it true.
func (r *CarenciaRepository) UpdateWorkflow(ctx context.Context, record *carencia.Record) error {
	ctx, cancel := r.conn.queryContext(ctx)
	defer cancel()

	tag, err := r.conn.Exec(ctx, `
		UPDATE carencia_records
		SET workflow_status = $2, provenance = $3, notes = $4, cleared = $5, updated_at = $6
		WHERE id = $1
	`,
		record.ID,
		string(record.Status),
		string(record.Provenance),
		record.Notes,
		record.Computed.Cleared,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SCAN HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func scanPeriod(row rowScanner) (*carencia.Period, error) {
	var period carencia.Period
	var minimum float64

	err := row.Scan(
		&period.ID,
		&period.TurmaID,
		&period.Window.Month,
		&period.Window.Year,
		&minimum,
		&period.Version,
		&period.CreatedAt,
		&period.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	period.MinimumPercentage = shared.Percentage(minimum)
	return &period, nil
}

func scanRecord(row rowScanner) (*carencia.Record, error) {
	var rec carencia.Record
	var percentage float64
	var status, provenance string

	err := row.Scan(
		&rec.ID,
		&rec.PeriodID,
		&rec.StudentID,
		&rec.Computed.TotalPresences,
		&rec.Computed.TotalActivities,
		&percentage,
		&rec.Computed.DeficiencyCount,
		&rec.Computed.Cleared,
		&status,
		&provenance,
		&rec.Notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Computed.Percentage = shared.Percentage(percentage)
	rec.Status = carencia.WorkflowStatus(status)
	rec.Provenance = carencia.Provenance(provenance)
	return &rec, nil
}

func scanStudentRecord(row rowScanner) (carencia.StudentRecord, error) {
	var rec carencia.Record
	var window shared.MonthYear
	var percentage float64
	var status, provenance string

	err := row.Scan(
		&rec.ID,
		&rec.PeriodID,
		&rec.StudentID,
		&rec.Computed.TotalPresences,
		&rec.Computed.TotalActivities,
		&percentage,
		&rec.Computed.DeficiencyCount,
		&rec.Computed.Cleared,
		&status,
		&provenance,
		&rec.Notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&window.Month,
		&window.Year,
	)
	if err != nil {
		return carencia.StudentRecord{}, err
	}

	rec.Computed.Percentage = shared.Percentage(percentage)
	rec.Status = carencia.WorkflowStatus(status)
	rec.Provenance = carencia.Provenance(provenance)
	return carencia.StudentRecord{Window: window, Record: &rec}, nil
}

func scanRecords(rows pgx.Rows) ([]*carencia.Record, error) {
	records := make([]*carencia.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// qualifyColumns prefixes each column in a comma-separated list with an alias.
func qualifyColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
