package grading

import (
	"context"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// AverageCache is the caching port for derived averages and rankings.
// Everything behind it can be rebuilt from the average repository, so
// implementations absorb failures: a Get that fails reports a miss and a
// Put that fails is dropped. Neither returns an error.
type AverageCache interface {
	// GetStudentAverages returns one student's cached rows for a year,
	// or false on a miss.
	GetStudentAverages(ctx context.Context, studentID shared.StudentID, year shared.AcademicYear) ([]GradeAverage, bool)

	// PutStudentAverages caches one student's rows for a year.
	PutStudentAverages(ctx context.Context, studentID shared.StudentID, year shared.AcademicYear, avgs []GradeAverage)

	// GetRanking returns a cached cohort ranking, or false on a miss.
	// An empty SubjectID addresses the class-wide (overall) ranking.
	GetRanking(ctx context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType AverageType) ([]GradeAverage, bool)

	// PutRanking caches a cohort ranking.
	PutRanking(ctx context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType AverageType, avgs []GradeAverage)

	// EvictStudent drops every cached average of one student.
	EvictStudent(ctx context.Context, studentID shared.StudentID)

	// EvictClass drops every cached ranking of one class.
	EvictClass(ctx context.Context, classID shared.ClassID)
}

// NoopAverageCache is an AverageCache that caches nothing. Used when the
// cache backend is disabled.
type NoopAverageCache struct{}

var _ AverageCache = NoopAverageCache{}

func (NoopAverageCache) GetStudentAverages(context.Context, shared.StudentID, shared.AcademicYear) ([]GradeAverage, bool) {
	return nil, false
}

func (NoopAverageCache) PutStudentAverages(context.Context, shared.StudentID, shared.AcademicYear, []GradeAverage) {
}

func (NoopAverageCache) GetRanking(context.Context, shared.ClassID, shared.SubjectID, shared.Semester, shared.AcademicYear, AverageType) ([]GradeAverage, bool) {
	return nil, false
}

func (NoopAverageCache) PutRanking(context.Context, shared.ClassID, shared.SubjectID, shared.Semester, shared.AcademicYear, AverageType, []GradeAverage) {
}

func (NoopAverageCache) EvictStudent(context.Context, shared.StudentID) {}

func (NoopAverageCache) EvictClass(context.Context, shared.ClassID) {}
