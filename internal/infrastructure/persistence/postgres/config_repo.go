// Package postgres implements the PostgreSQL persistence layer for the
// grade engine.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTER CONFIG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ConfigRepository implements schedule.Repository for PostgreSQL.
// The system-wide default config is the row with teacher_id IS NULL.
type ConfigRepository struct {
	conn *Connection
}

var _ schedule.Repository = (*ConfigRepository)(nil)

// NewConfigRepository creates a new ConfigRepository.
func NewConfigRepository(conn *Connection) *ConfigRepository {
	return &ConfigRepository{conn: conn}
}

// Save upserts a config keyed by (teacherID, academicYear, semesterExamCode).
// The two partial unique indexes (teacher rows vs the default row) force
// the upsert through a delete-then-insert inside one transaction.
func (r *ConfigRepository) Save(ctx context.Context, cfg *schedule.SemesterConfig) error {
	scheduleJSON, err := json.Marshal(cfg.ExamSchedule)
	if err != nil {
		return fmt.Errorf("failed to marshal exam schedule: %w", err)
	}

	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		deleteQuery := `
			DELETE FROM semester_configs
			WHERE academic_year = $1 AND semester_exam_code = $2
			  AND teacher_id IS NOT DISTINCT FROM $3
		`
		if _, err := tx.Exec(ctx, deleteQuery,
			string(cfg.AcademicYear),
			cfg.SemesterExamCode,
			nullableTeacher(cfg.TeacherID),
		); err != nil {
			return fmt.Errorf("failed to replace semester config: %w", err)
		}

		insertQuery := `
			INSERT INTO semester_configs (
				id, teacher_id, academic_year, semester_exam_code,
				exam_schedule, monthly_weight, semester_weight,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		if _, err := tx.Exec(ctx, insertQuery,
			cfg.ID,
			nullableTeacher(cfg.TeacherID),
			string(cfg.AcademicYear),
			cfg.SemesterExamCode,
			scheduleJSON,
			nullableWeight(cfg.MonthlyWeight),
			nullableWeight(cfg.SemesterWeight),
			cfg.CreatedAt,
			cfg.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to save semester config: %w", err)
		}

		return nil
	})
}

// Find returns the config for the exact (teacherID, academicYear,
// semesterExamCode) tuple, or shared.ErrConfigNotFound. An empty teacherID
// addresses the default row.
func (r *ConfigRepository) Find(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*schedule.SemesterConfig, error) {
	query := selectConfigSQL + `
		WHERE academic_year = $1 AND semester_exam_code = $2
		  AND teacher_id IS NOT DISTINCT FROM $3
	`

	row := r.conn.QueryRow(ctx, query, string(year), examCode, nullableTeacher(teacherID))
	return r.scanConfig(row)
}

// ListByYear returns all configs for a year, default row first.
func (r *ConfigRepository) ListByYear(ctx context.Context, year shared.AcademicYear) ([]schedule.SemesterConfig, error) {
	query := selectConfigSQL + `
		WHERE academic_year = $1
		ORDER BY teacher_id ASC NULLS FIRST, semester_exam_code ASC
	`

	rows, err := r.conn.Query(ctx, query, string(year))
	if err != nil {
		return nil, fmt.Errorf("failed to query semester configs: %w", err)
	}
	defer rows.Close()

	var configs []schedule.SemesterConfig
	for rows.Next() {
		cfg, err := r.scanConfigFromRows(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}

	return configs, rows.Err()
}

// Delete removes the config for the exact tuple. Deleting a teacher config
// never touches the default row.
func (r *ConfigRepository) Delete(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) error {
	query := `
		DELETE FROM semester_configs
		WHERE academic_year = $1 AND semester_exam_code = $2
		  AND teacher_id IS NOT DISTINCT FROM $3
	`

	result, err := r.conn.Exec(ctx, query, string(year), examCode, nullableTeacher(teacherID))
	if err != nil {
		return fmt.Errorf("failed to delete semester config: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrConfigNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

const selectConfigSQL = `
	SELECT id, teacher_id, academic_year, semester_exam_code,
		   exam_schedule, monthly_weight, semester_weight,
		   created_at, updated_at
	FROM semester_configs
`

func (r *ConfigRepository) scanConfig(row pgx.Row) (*schedule.SemesterConfig, error) {
	var cfg schedule.SemesterConfig
	var teacherID *string
	var academicYear string
	var scheduleJSON []byte
	var monthlyWeight, semesterWeight *float64

	err := row.Scan(
		&cfg.ID,
		&teacherID,
		&academicYear,
		&cfg.SemesterExamCode,
		&scheduleJSON,
		&monthlyWeight,
		&semesterWeight,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan semester config: %w", err)
	}

	if err := fillConfig(&cfg, teacherID, academicYear, scheduleJSON, monthlyWeight, semesterWeight); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigRepository) scanConfigFromRows(rows pgx.Rows) (*schedule.SemesterConfig, error) {
	var cfg schedule.SemesterConfig
	var teacherID *string
	var academicYear string
	var scheduleJSON []byte
	var monthlyWeight, semesterWeight *float64

	err := rows.Scan(
		&cfg.ID,
		&teacherID,
		&academicYear,
		&cfg.SemesterExamCode,
		&scheduleJSON,
		&monthlyWeight,
		&semesterWeight,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan semester config: %w", err)
	}

	if err := fillConfig(&cfg, teacherID, academicYear, scheduleJSON, monthlyWeight, semesterWeight); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fillConfig(cfg *schedule.SemesterConfig, teacherID *string, academicYear string, scheduleJSON []byte, monthlyWeight, semesterWeight *float64) error {
	if teacherID != nil {
		cfg.TeacherID = shared.TeacherID(*teacherID)
	}
	cfg.AcademicYear = shared.AcademicYear(academicYear)

	if len(scheduleJSON) > 0 {
		if err := json.Unmarshal(scheduleJSON, &cfg.ExamSchedule); err != nil {
			return fmt.Errorf("failed to unmarshal exam schedule: %w", err)
		}
	}

	if monthlyWeight != nil {
		cfg.MonthlyWeight = *monthlyWeight
	}
	if semesterWeight != nil {
		cfg.SemesterWeight = *semesterWeight
	}

	return nil
}

// nullableTeacher maps the empty (default-scope) teacher to SQL NULL.
func nullableTeacher(id shared.TeacherID) *string {
	if id.IsDefault() {
		return nil
	}
	s := string(id)
	return &s
}

func nullableWeight(w float64) *float64 {
	if w <= 0 {
		return nil
	}
	return &w
}
