// Package postgres implements the PostgreSQL persistence layer for the
// grade engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE AVERAGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AverageRepository implements grading.AverageRepository for PostgreSQL.
// Average rows are owned by the engine: a recompute overwrites the whole
// row, nothing ever edits one field in place.
type AverageRepository struct {
	conn *Connection
}

var _ grading.AverageRepository = (*AverageRepository)(nil)

// NewAverageRepository creates a new AverageRepository.
func NewAverageRepository(conn *Connection) *AverageRepository {
	return &AverageRepository{conn: conn}
}

const upsertAverageSQL = `
	INSERT INTO grade_averages (
		id, student_id, class_id, subject_id, semester, academic_year,
		average_type, average_score, letter_grade, class_rank, subject_rank,
		total_students, calculated_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (
		student_id, class_id,
		COALESCE(subject_id, '00000000-0000-0000-0000-000000000000'::uuid),
		COALESCE(semester, 0),
		academic_year, average_type
	)
	DO UPDATE SET
		average_score = EXCLUDED.average_score,
		letter_grade = EXCLUDED.letter_grade,
		class_rank = EXCLUDED.class_rank,
		subject_rank = EXCLUDED.subject_rank,
		total_students = EXCLUDED.total_students,
		calculated_at = EXCLUDED.calculated_at,
		updated_at = EXCLUDED.updated_at
`

// Upsert writes a single average row keyed by its unique tuple.
func (r *AverageRepository) Upsert(ctx context.Context, avg *grading.GradeAverage) error {
	args := upsertArgs(avg)
	if _, err := r.conn.Exec(ctx, upsertAverageSQL, args...); err != nil {
		return fmt.Errorf("failed to upsert grade average: %w", err)
	}
	return nil
}

// UpsertAll writes a batch of average rows in one transaction. A failed
// statement rolls back the whole batch, leaving every prior row intact.
func (r *AverageRepository) UpsertAll(ctx context.Context, avgs []grading.GradeAverage) error {
	if len(avgs) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range avgs {
			batch.Queue(upsertAverageSQL, upsertArgs(&avgs[i])...)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range avgs {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to upsert grade average batch: %w", err)
			}
		}

		return results.Close()
	})
}

// Find returns the row for the key or shared.ErrAverageNotFound.
func (r *AverageRepository) Find(ctx context.Context, key grading.AverageKey) (*grading.GradeAverage, error) {
	query := selectAverageSQL + `
		WHERE student_id = $1 AND class_id = $2
		  AND COALESCE(subject_id, '00000000-0000-0000-0000-000000000000'::uuid) = COALESCE($3, '00000000-0000-0000-0000-000000000000'::uuid)
		  AND COALESCE(semester, 0) = $4
		  AND academic_year = $5 AND average_type = $6
	`

	row := r.conn.QueryRow(ctx, query,
		string(key.StudentID),
		string(key.ClassID),
		nullableSubject(key.SubjectID),
		int(key.Semester),
		string(key.AcademicYear),
		string(key.AverageType),
	)
	return r.scanAverage(row)
}

// ListForClass returns all rows of one class cohort for a period, ordered
// by score descending. An empty SubjectID selects the overall rows.
func (r *AverageRepository) ListForClass(ctx context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, error) {
	query := selectAverageSQL + `
		WHERE class_id = $1
		  AND COALESCE(subject_id, '00000000-0000-0000-0000-000000000000'::uuid) = COALESCE($2, '00000000-0000-0000-0000-000000000000'::uuid)
		  AND COALESCE(semester, 0) = $3
		  AND academic_year = $4 AND average_type = $5
		ORDER BY average_score DESC, student_id ASC
	`

	rows, err := r.conn.Query(ctx, query,
		string(classID),
		nullableSubject(subjectID),
		int(semester),
		string(year),
		string(avgType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query class averages: %w", err)
	}
	defer rows.Close()

	return r.scanAverages(rows)
}

// ListSubjectAveragesForClass returns every per-subject row of the class
// for a period, across all subjects, ordered for stable grouping.
func (r *AverageRepository) ListSubjectAveragesForClass(ctx context.Context, classID shared.ClassID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, error) {
	query := selectAverageSQL + `
		WHERE class_id = $1
		  AND subject_id IS NOT NULL
		  AND COALESCE(semester, 0) = $2
		  AND academic_year = $3 AND average_type = $4
		ORDER BY student_id ASC, subject_id ASC
	`

	rows, err := r.conn.Query(ctx, query,
		string(classID),
		int(semester),
		string(year),
		string(avgType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query class subject averages: %w", err)
	}
	defer rows.Close()

	return r.scanAverages(rows)
}

// ListForStudent returns all of a student's rows for a year.
func (r *AverageRepository) ListForStudent(ctx context.Context, studentID shared.StudentID, year shared.AcademicYear) ([]grading.GradeAverage, error) {
	query := selectAverageSQL + `
		WHERE student_id = $1 AND academic_year = $2
		ORDER BY average_type ASC, COALESCE(semester, 0) ASC
	`

	rows, err := r.conn.Query(ctx, query, string(studentID), string(year))
	if err != nil {
		return nil, fmt.Errorf("failed to query student averages: %w", err)
	}
	defer rows.Close()

	return r.scanAverages(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

const selectAverageSQL = `
	SELECT id, student_id, class_id, subject_id, semester, academic_year,
		   average_type, average_score, letter_grade, class_rank, subject_rank,
		   total_students, calculated_at
	FROM grade_averages
`

func upsertArgs(avg *grading.GradeAverage) []interface{} {
	now := time.Now().UTC()
	if avg.ID == "" {
		avg.ID = uuid.NewString()
	}
	if avg.CalculatedAt.IsZero() {
		avg.CalculatedAt = now
	}

	return []interface{}{
		avg.ID,
		string(avg.StudentID),
		string(avg.ClassID),
		nullableSubject(avg.SubjectID),
		nullableSemester(avg.Semester),
		string(avg.AcademicYear),
		string(avg.AverageType),
		avg.AverageScore,
		string(avg.LetterGrade),
		nullableRank(avg.ClassRank),
		nullableRank(avg.SubjectRank),
		nullableRank(avg.TotalStudents),
		avg.CalculatedAt,
		now,
		now,
	}
}

func (r *AverageRepository) scanAverage(row pgx.Row) (*grading.GradeAverage, error) {
	var a grading.GradeAverage
	var studentID, classID, academicYear, avgType, letter string
	var subjectID *string
	var semester, classRank, subjectRank, totalStudents *int

	err := row.Scan(
		&a.ID,
		&studentID,
		&classID,
		&subjectID,
		&semester,
		&academicYear,
		&avgType,
		&a.AverageScore,
		&letter,
		&classRank,
		&subjectRank,
		&totalStudents,
		&a.CalculatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrAverageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan grade average: %w", err)
	}

	fillAverage(&a, studentID, classID, subjectID, semester, academicYear, avgType, letter, classRank, subjectRank, totalStudents)
	return &a, nil
}

func (r *AverageRepository) scanAverages(rows pgx.Rows) ([]grading.GradeAverage, error) {
	var avgs []grading.GradeAverage

	for rows.Next() {
		var a grading.GradeAverage
		var studentID, classID, academicYear, avgType, letter string
		var subjectID *string
		var semester, classRank, subjectRank, totalStudents *int

		err := rows.Scan(
			&a.ID,
			&studentID,
			&classID,
			&subjectID,
			&semester,
			&academicYear,
			&avgType,
			&a.AverageScore,
			&letter,
			&classRank,
			&subjectRank,
			&totalStudents,
			&a.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grade average: %w", err)
		}

		fillAverage(&a, studentID, classID, subjectID, semester, academicYear, avgType, letter, classRank, subjectRank, totalStudents)
		avgs = append(avgs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return avgs, nil
}

func fillAverage(a *grading.GradeAverage, studentID, classID string, subjectID *string, semester *int, academicYear, avgType, letter string, classRank, subjectRank, totalStudents *int) {
	a.StudentID = shared.StudentID(studentID)
	a.ClassID = shared.ClassID(classID)
	if subjectID != nil {
		a.SubjectID = shared.SubjectID(*subjectID)
	}
	if semester != nil {
		a.Semester = shared.Semester(*semester)
	}
	a.AcademicYear = shared.AcademicYear(academicYear)
	a.AverageType = grading.AverageType(avgType)
	a.LetterGrade = grading.LetterGrade(letter)
	if classRank != nil {
		a.ClassRank = *classRank
	}
	if subjectRank != nil {
		a.SubjectRank = *subjectRank
	}
	if totalStudents != nil {
		a.TotalStudents = *totalStudents
	}
}

// nullableSubject maps the empty (overall) subject to SQL NULL.
func nullableSubject(id shared.SubjectID) *string {
	if id.IsOverall() {
		return nil
	}
	s := string(id)
	return &s
}

// nullableSemester maps the zero (annual) semester to SQL NULL.
func nullableSemester(s shared.Semester) *int {
	if s == shared.SemesterNone {
		return nil
	}
	v := int(s)
	return &v
}

func nullableRank(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
