package schedule

import (
	"context"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// Repository is the persistence port for semester configs.
// An empty TeacherID addresses the system-wide default row.
type Repository interface {
	// Save upserts a config keyed by (teacherID, academicYear, semesterExamCode).
	Save(ctx context.Context, cfg *SemesterConfig) error

	// Find returns the config for the exact (teacherID, academicYear,
	// semesterExamCode) tuple, or shared.ErrConfigNotFound.
	Find(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*SemesterConfig, error)

	// ListByYear returns all configs (teacher and default) for a year.
	ListByYear(ctx context.Context, year shared.AcademicYear) ([]SemesterConfig, error)

	// Delete removes the config for the exact tuple. Deleting a teacher
	// config never touches the default row.
	Delete(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) error
}
