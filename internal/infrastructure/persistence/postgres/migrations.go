// Package postgres implements PostgreSQL persistence for the attendance engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CATALOG TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create catalog tables
-- Version: 001

CREATE TABLE IF NOT EXISTS courses (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS turmas (
    id BIGSERIAL PRIMARY KEY,
    course_id BIGINT NOT NULL REFERENCES courses(id),
    name VARCHAR(200) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'planejada',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_turma_status CHECK (status IN ('planejada', 'em_andamento', 'concluida', 'cancelada'))
);

CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS turma_students (
    turma_id BIGINT NOT NULL REFERENCES turmas(id) ON DELETE CASCADE,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (turma_id, student_id)
);

CREATE TABLE IF NOT EXISTS activities (
    id BIGSERIAL PRIMARY KEY,
    turma_id BIGINT NOT NULL REFERENCES turmas(id),
    name VARCHAR(200) NOT NULL,
    type VARCHAR(50) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'agendada',
    data_inicio DATE NOT NULL,
    data_fim DATE NOT NULL,
    data_real_fim DATE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_activity_status CHECK (status IN ('agendada', 'realizada', 'cancelada'))
);

CREATE INDEX IF NOT EXISTS idx_turmas_course_id ON turmas(course_id);
CREATE INDEX IF NOT EXISTS idx_turmas_status ON turmas(status);
CREATE INDEX IF NOT EXISTS idx_activities_turma_id ON activities(turma_id);
CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type);
CREATE INDEX IF NOT EXISTS idx_activities_data_inicio ON activities(data_inicio);
`

const migration001Down = `
DROP TABLE IF EXISTS activities;
DROP TABLE IF EXISTS turma_students;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS turmas;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ATTENDANCE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create attendance event tables
-- Version: 002

CREATE TABLE IF NOT EXISTS attendance_events (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id),
    turma_id BIGINT NOT NULL REFERENCES turmas(id),
    activity_id BIGINT NOT NULL REFERENCES activities(id),
    event_date DATE NOT NULL,
    status VARCHAR(2) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One event per student/activity/date; re-registration upserts.
    CONSTRAINT uq_attendance_event UNIQUE (student_id, turma_id, activity_id, event_date),
    CONSTRAINT valid_attendance_status CHECK (status IN ('P', 'F', 'J', 'V1', 'V2'))
);

CREATE TABLE IF NOT EXISTS instruction_assignments (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id),
    activity_id BIGINT NOT NULL REFERENCES activities(id),
    role VARCHAR(30) NOT NULL,
    assignment_date DATE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_instruction_role CHECK (role IN ('instrutor_chefe', 'instrutor_auxiliar'))
);

CREATE INDEX IF NOT EXISTS idx_attendance_events_student ON attendance_events(student_id, event_date);
CREATE INDEX IF NOT EXISTS idx_attendance_events_turma_date ON attendance_events(turma_id, event_date);
CREATE INDEX IF NOT EXISTS idx_attendance_events_activity ON attendance_events(activity_id);
CREATE INDEX IF NOT EXISTS idx_instruction_assignments_student ON instruction_assignments(student_id, assignment_date);
`

const migration002Down = `
DROP TABLE IF EXISTS instruction_assignments;
DROP TABLE IF EXISTS attendance_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CARÊNCIA PERIODS AND RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create carência snapshot tables
-- Version: 003

CREATE TABLE IF NOT EXISTS periods (
    id UUID PRIMARY KEY,
    turma_id BIGINT NOT NULL REFERENCES turmas(id),
    month SMALLINT NOT NULL,
    year SMALLINT NOT NULL,
    minimum_percentage DECIMAL(5,2) NOT NULL DEFAULT 75.00,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_period UNIQUE (turma_id, month, year),
    CONSTRAINT valid_month CHECK (month BETWEEN 1 AND 12),
    CONSTRAINT valid_minimum CHECK (minimum_percentage >= 0 AND minimum_percentage <= 100)
);

CREATE TABLE IF NOT EXISTS carencia_records (
    id UUID PRIMARY KEY,
    period_id UUID NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
    student_id BIGINT NOT NULL REFERENCES students(id),
    total_presences INTEGER NOT NULL DEFAULT 0,
    total_activities INTEGER NOT NULL DEFAULT 0,
    percentage DECIMAL(5,2) NOT NULL DEFAULT 0.00,
    deficiency_count INTEGER NOT NULL DEFAULT 0,
    cleared BOOLEAN NOT NULL DEFAULT FALSE,
    workflow_status VARCHAR(20) NOT NULL DEFAULT '',
    provenance VARCHAR(10) NOT NULL DEFAULT 'automatic',
    notes TEXT NOT NULL DEFAULT '',
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_carencia_record UNIQUE (period_id, student_id),
    CONSTRAINT valid_workflow_status CHECK (workflow_status IN ('', 'pendente', 'em_acompanhamento', 'resolvida')),
    CONSTRAINT valid_provenance CHECK (provenance IN ('automatic', 'manual'))
);

CREATE INDEX IF NOT EXISTS idx_periods_turma ON periods(turma_id, year, month);
CREATE INDEX IF NOT EXISTS idx_carencia_records_period ON carencia_records(period_id);
CREATE INDEX IF NOT EXISTS idx_carencia_records_student ON carencia_records(student_id);
CREATE INDEX IF NOT EXISTS idx_carencia_records_pending ON carencia_records(workflow_status) WHERE workflow_status <> '';
`

const migration003Down = `
DROP TABLE IF EXISTS carencia_records;
DROP TABLE IF EXISTS periods;
`

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_catalog",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_attendance_events",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_carencia_snapshots",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
