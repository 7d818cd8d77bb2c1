// Package postgres implements the PostgreSQL persistence layer.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email VARCHAR(254) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL,
    password_hash BYTEA NOT NULL,
    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_email ON students(email);
CREATE INDEX IF NOT EXISTS idx_students_active ON students(active) WHERE active;

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_students_updated_at ON students;
CREATE TRIGGER update_students_updated_at
    BEFORE UPDATE ON students
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_students_updated_at ON students;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE STUDENT MODULES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create student module state table
-- Version: 002
-- One row per (student, module state key). The key is either the module's
-- usage key or a shared-state key, so modules can share a row per student.

CREATE TABLE IF NOT EXISTS student_modules (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    module_type VARCHAR(32) NOT NULL,
    module_state_key VARCHAR(255) NOT NULL,
    state JSONB,
    grade DOUBLE PRECISION,
    max_grade DOUBLE PRECISION,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(student_id, module_state_key),
    CONSTRAINT valid_grade CHECK (grade IS NULL OR grade >= 0)
);

-- The dispatch path looks rows up by (student, key); the histogram and count
-- paths scan by key alone.
CREATE INDEX IF NOT EXISTS idx_student_modules_student ON student_modules(student_id);
CREATE INDEX IF NOT EXISTS idx_student_modules_key ON student_modules(module_state_key);
CREATE INDEX IF NOT EXISTS idx_student_modules_key_grade ON student_modules(module_state_key, grade);

DROP TRIGGER IF EXISTS update_student_modules_updated_at ON student_modules;
CREATE TRIGGER update_student_modules_updated_at
    BEFORE UPDATE ON student_modules
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration002Down = `
DROP TRIGGER IF EXISTS update_student_modules_updated_at ON student_modules;
DROP TABLE IF EXISTS student_modules;
`
