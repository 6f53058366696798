// Package postgres implements the PostgreSQL persistence layer for the
// grade engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE ENTRY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EntryRepository implements grading.EntryRepository for PostgreSQL.
type EntryRepository struct {
	conn *Connection
}

var _ grading.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(conn *Connection) *EntryRepository {
	return &EntryRepository{conn: conn}
}

// Save inserts or updates a grade entry. The unique slot is
// (student, subject, assessment code, semester, year); re-entering a score
// for the same slot overwrites it.
func (r *EntryRepository) Save(ctx context.Context, e *grading.GradeEntry) error {
	query := `
		INSERT INTO grade_entries (
			id, student_id, class_id, subject_id, assessment_type_code,
			score, max_score, semester, academic_year, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, subject_id, assessment_type_code, semester, academic_year)
		DO UPDATE SET
			class_id = EXCLUDED.class_id,
			score = EXCLUDED.score,
			max_score = EXCLUDED.max_score,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		string(e.StudentID),
		string(e.ClassID),
		string(e.SubjectID),
		e.AssessmentTypeCode,
		e.Score,
		e.MaxScore,
		int(e.Semester),
		string(e.AcademicYear),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save grade entry: %w", err)
	}

	return nil
}

// FindByID returns the entry or shared.ErrEntryNotFound.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*grading.GradeEntry, error) {
	query := `
		SELECT id, student_id, class_id, subject_id, assessment_type_code,
			   score, max_score, semester, academic_year, created_at, updated_at
		FROM grade_entries
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanEntry(row)
}

// Delete removes the entry by ID.
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM grade_entries WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete grade entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}

	return nil
}

// ListForScope returns all entries contributing to one student's subject
// average for a semester, ordered by assessment code for stable iteration.
func (r *EntryRepository) ListForScope(ctx context.Context, scope grading.EntryScope) ([]grading.GradeEntry, error) {
	query := `
		SELECT id, student_id, class_id, subject_id, assessment_type_code,
			   score, max_score, semester, academic_year, created_at, updated_at
		FROM grade_entries
		WHERE student_id = $1 AND subject_id = $2 AND semester = $3 AND academic_year = $4
		ORDER BY assessment_type_code ASC
	`

	rows, err := r.conn.Query(ctx, query,
		string(scope.StudentID),
		string(scope.SubjectID),
		int(scope.Semester),
		string(scope.AcademicYear),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query grade entries: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *EntryRepository) scanEntry(row pgx.Row) (*grading.GradeEntry, error) {
	var e grading.GradeEntry
	var studentID, classID, subjectID, academicYear string
	var semester int

	err := row.Scan(
		&e.ID,
		&studentID,
		&classID,
		&subjectID,
		&e.AssessmentTypeCode,
		&e.Score,
		&e.MaxScore,
		&semester,
		&academicYear,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan grade entry: %w", err)
	}

	e.StudentID = shared.StudentID(studentID)
	e.ClassID = shared.ClassID(classID)
	e.SubjectID = shared.SubjectID(subjectID)
	e.Semester = shared.Semester(semester)
	e.AcademicYear = shared.AcademicYear(academicYear)

	return &e, nil
}

func (r *EntryRepository) scanEntries(rows pgx.Rows) ([]grading.GradeEntry, error) {
	var entries []grading.GradeEntry

	for rows.Next() {
		var e grading.GradeEntry
		var studentID, classID, subjectID, academicYear string
		var semester int

		err := rows.Scan(
			&e.ID,
			&studentID,
			&classID,
			&subjectID,
			&e.AssessmentTypeCode,
			&e.Score,
			&e.MaxScore,
			&semester,
			&academicYear,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grade entry: %w", err)
		}

		e.StudentID = shared.StudentID(studentID)
		e.ClassID = shared.ClassID(classID)
		e.SubjectID = shared.SubjectID(subjectID)
		e.Semester = shared.Semester(semester)
		e.AcademicYear = shared.AcademicYear(academicYear)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT TYPE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentTypeRepository implements grading.AssessmentTypeRepository
// for PostgreSQL. Assessment types are reference data and rarely change.
type AssessmentTypeRepository struct {
	conn *Connection
}

var _ grading.AssessmentTypeRepository = (*AssessmentTypeRepository)(nil)

// NewAssessmentTypeRepository creates a new AssessmentTypeRepository.
func NewAssessmentTypeRepository(conn *Connection) *AssessmentTypeRepository {
	return &AssessmentTypeRepository{conn: conn}
}

// FindByCode returns the type or shared.ErrAssessmentTypeNotFound.
func (r *AssessmentTypeRepository) FindByCode(ctx context.Context, code string) (*grading.AssessmentType, error) {
	query := `
		SELECT code, category, grade_level
		FROM assessment_types
		WHERE code = $1
	`

	var t grading.AssessmentType
	var category string

	err := r.conn.QueryRow(ctx, query, code).Scan(&t.Code, &category, &t.GradeLevel)
	if IsNoRows(err) {
		return nil, shared.ErrAssessmentTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessment type: %w", err)
	}

	t.Category = grading.AssessmentCategory(category)
	return &t, nil
}

// List returns all assessment types.
func (r *AssessmentTypeRepository) List(ctx context.Context) ([]grading.AssessmentType, error) {
	query := `
		SELECT code, category, grade_level
		FROM assessment_types
		ORDER BY code ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment types: %w", err)
	}
	defer rows.Close()

	var types []grading.AssessmentType
	for rows.Next() {
		var t grading.AssessmentType
		var category string

		if err := rows.Scan(&t.Code, &category, &t.GradeLevel); err != nil {
			return nil, fmt.Errorf("failed to scan assessment type: %w", err)
		}

		t.Category = grading.AssessmentCategory(category)
		types = append(types, t)
	}

	return types, rows.Err()
}
