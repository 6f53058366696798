// Package postgres implements the PostgreSQL persistence layer for the
// grade engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ASSESSMENT TYPES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create assessment_types table
-- Version: 001

CREATE TABLE IF NOT EXISTS assessment_types (
    code VARCHAR(50) PRIMARY KEY,
    category VARCHAR(20) NOT NULL,
    grade_level INTEGER NOT NULL DEFAULT 0,
    title VARCHAR(100),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_category CHECK (category IN ('MONTHLY', 'SEMESTER', 'ANNUAL'))
);

CREATE INDEX IF NOT EXISTS idx_assessment_types_category ON assessment_types(category);

-- Seed the assessment codes every school year cycles through.
INSERT INTO assessment_types (code, category, title) VALUES
    ('MONTHLY_EXAM_1', 'MONTHLY', 'Monthly Exam 1'),
    ('MONTHLY_EXAM_2', 'MONTHLY', 'Monthly Exam 2'),
    ('MONTHLY_EXAM_3', 'MONTHLY', 'Monthly Exam 3'),
    ('MONTHLY_EXAM_4', 'MONTHLY', 'Monthly Exam 4'),
    ('MONTHLY_EXAM_5', 'MONTHLY', 'Monthly Exam 5'),
    ('SEMESTER_EXAM_1', 'SEMESTER', 'First Semester Exam'),
    ('SEMESTER_EXAM_2', 'SEMESTER', 'Second Semester Exam'),
    ('ANNUAL_EXAM', 'ANNUAL', 'Annual Exam')
ON CONFLICT (code) DO NOTHING;
`

const migration001Down = `
DROP TABLE IF EXISTS assessment_types CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE GRADE ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create grade_entries table
-- Version: 002

CREATE TABLE IF NOT EXISTS grade_entries (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL,
    class_id UUID NOT NULL,
    subject_id UUID NOT NULL,
    assessment_type_code VARCHAR(50) NOT NULL REFERENCES assessment_types(code),
    score DECIMAL(6,2) NOT NULL,
    max_score DECIMAL(6,2) NOT NULL,
    semester SMALLINT NOT NULL,
    academic_year VARCHAR(9) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_score CHECK (score >= 0 AND max_score > 0 AND score <= max_score),
    CONSTRAINT valid_semester CHECK (semester IN (1, 2))
);

-- One score per student per assessment per subject per term.
CREATE UNIQUE INDEX IF NOT EXISTS uniq_grade_entries_slot
    ON grade_entries(student_id, subject_id, assessment_type_code, semester, academic_year);

-- Indexes for the scopes calculation reads by
CREATE INDEX IF NOT EXISTS idx_grade_entries_student_scope
    ON grade_entries(student_id, academic_year, semester);
CREATE INDEX IF NOT EXISTS idx_grade_entries_class
    ON grade_entries(class_id, academic_year);
CREATE INDEX IF NOT EXISTS idx_grade_entries_subject
    ON grade_entries(subject_id, academic_year, semester);
`

const migration002Down = `
DROP TABLE IF EXISTS grade_entries CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE SEMESTER CONFIGS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create semester_configs table
-- Version: 003

CREATE TABLE IF NOT EXISTS semester_configs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    teacher_id UUID,
    academic_year VARCHAR(9) NOT NULL,
    semester_exam_code VARCHAR(50) NOT NULL,

    -- Ordered list of exam slots; order is part of the data.
    -- [{"assessmentCode": "...", "title": "...", "displayOrder": 1, "weight": 30}, ...]
    exam_schedule JSONB NOT NULL DEFAULT '[]'::jsonb,

    monthly_weight DECIMAL(5,2),
    semester_weight DECIMAL(5,2),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- teacher_id IS NULL marks the school-wide default, so uniqueness needs
-- two partial indexes instead of one plain unique constraint.
CREATE UNIQUE INDEX IF NOT EXISTS uniq_semester_configs_teacher
    ON semester_configs(teacher_id, academic_year, semester_exam_code)
    WHERE teacher_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uniq_semester_configs_default
    ON semester_configs(academic_year, semester_exam_code)
    WHERE teacher_id IS NULL;

CREATE INDEX IF NOT EXISTS idx_semester_configs_year
    ON semester_configs(academic_year);
`

const migration003Down = `
DROP TABLE IF EXISTS semester_configs CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE GRADE AVERAGES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create grade_averages table
-- Version: 004

CREATE TABLE IF NOT EXISTS grade_averages (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL,
    class_id UUID NOT NULL,
    subject_id UUID,
    semester SMALLINT,
    academic_year VARCHAR(9) NOT NULL,
    average_type VARCHAR(20) NOT NULL,
    average_score DECIMAL(5,2) NOT NULL,
    letter_grade CHAR(1) NOT NULL,
    class_rank INTEGER,
    subject_rank INTEGER,
    total_students INTEGER,
    calculated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_average_type CHECK (average_type IN ('MONTHLY', 'SEMESTER', 'ANNUAL', 'OVERALL')),
    CONSTRAINT valid_average_score CHECK (average_score >= 0 AND average_score <= 100),
    CONSTRAINT valid_letter_grade CHECK (letter_grade IN ('A', 'B', 'C', 'D', 'E', 'F')),
    CONSTRAINT valid_semester CHECK (semester IS NULL OR semester IN (1, 2))
);

-- subject_id and semester are nullable (overall and annual rows), so the
-- natural key folds NULLs through COALESCE to keep upserts one-row.
CREATE UNIQUE INDEX IF NOT EXISTS uniq_grade_averages_key
    ON grade_averages(
        student_id,
        class_id,
        COALESCE(subject_id, '00000000-0000-0000-0000-000000000000'::uuid),
        COALESCE(semester, 0),
        academic_year,
        average_type
    );

CREATE INDEX IF NOT EXISTS idx_grade_averages_student
    ON grade_averages(student_id, academic_year);
CREATE INDEX IF NOT EXISTS idx_grade_averages_class_ranking
    ON grade_averages(class_id, academic_year, average_type, average_score DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS grade_averages CASCADE;
`
