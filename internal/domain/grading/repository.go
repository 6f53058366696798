package grading

import (
	"context"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// EntryScope selects the grade entries contributing to one average.
type EntryScope struct {
	StudentID    shared.StudentID
	SubjectID    shared.SubjectID
	Semester     shared.Semester
	AcademicYear shared.AcademicYear
}

// EntryRepository is the persistence port for raw grade entries.
type EntryRepository interface {
	// Save inserts or updates a grade entry.
	Save(ctx context.Context, entry *GradeEntry) error

	// FindByID returns the entry or shared.ErrEntryNotFound.
	FindByID(ctx context.Context, id string) (*GradeEntry, error)

	// Delete removes the entry by ID.
	Delete(ctx context.Context, id string) error

	// ListForScope returns all entries contributing to one student's
	// subject average for a semester.
	ListForScope(ctx context.Context, scope EntryScope) ([]GradeEntry, error)
}

// AverageRepository is the persistence port for derived average rows.
// This is the storage boundary the cache wraps; it carries no business
// logic.
type AverageRepository interface {
	// Upsert writes a single average row keyed by its unique tuple,
	// overwriting on conflict.
	Upsert(ctx context.Context, avg *GradeAverage) error

	// UpsertAll writes a batch of average rows in one transaction.
	// Used when a recompute refreshes a whole cohort's ranks.
	UpsertAll(ctx context.Context, avgs []GradeAverage) error

	// Find returns the row for the key or shared.ErrAverageNotFound.
	Find(ctx context.Context, key AverageKey) (*GradeAverage, error)

	// ListForClass returns all rows of one class cohort for a period.
	// An empty SubjectID selects the cross-subject (overall) rows.
	ListForClass(ctx context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType AverageType) ([]GradeAverage, error)

	// ListSubjectAveragesForClass returns every per-subject row of the
	// class for a period, across all subjects. Feeds the overall average
	// and the class rank.
	ListSubjectAveragesForClass(ctx context.Context, classID shared.ClassID, semester shared.Semester, year shared.AcademicYear, avgType AverageType) ([]GradeAverage, error)

	// ListForStudent returns all of a student's rows for a year.
	ListForStudent(ctx context.Context, studentID shared.StudentID, year shared.AcademicYear) ([]GradeAverage, error)
}

// AssessmentTypeRepository is the persistence port for assessment
// reference data.
type AssessmentTypeRepository interface {
	// FindByCode returns the type or shared.ErrAssessmentTypeNotFound.
	FindByCode(ctx context.Context, code string) (*AssessmentType, error)

	// List returns all assessment types.
	List(ctx context.Context) ([]AssessmentType, error)
}
