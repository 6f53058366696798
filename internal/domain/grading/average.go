package grading

import (
	"fmt"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Letter Grades
// ═══════════════════════════════════════════════════════════════════════════

// LetterGrade is a discrete grade derived from an average score.
type LetterGrade string

const (
	GradeA LetterGrade = "A"
	GradeB LetterGrade = "B"
	GradeC LetterGrade = "C"
	GradeD LetterGrade = "D"
	GradeE LetterGrade = "E"
	GradeF LetterGrade = "F"
)

// Letter grade thresholds, inclusive lower bounds.
const (
	ThresholdA = 85.0
	ThresholdB = 70.0
	ThresholdC = 55.0
	ThresholdD = 40.0
	ThresholdE = 25.0
)

// LetterGradeFor maps an average score to a letter grade.
// It is a pure, monotonic step function of the score.
func LetterGradeFor(score float64) LetterGrade {
	switch {
	case score >= ThresholdA:
		return GradeA
	case score >= ThresholdB:
		return GradeB
	case score >= ThresholdC:
		return GradeC
	case score >= ThresholdD:
		return GradeD
	case score >= ThresholdE:
		return GradeE
	default:
		return GradeF
	}
}

// String returns the string representation.
func (g LetterGrade) String() string {
	return string(g)
}

// ═══════════════════════════════════════════════════════════════════════════
// Average Types
// ═══════════════════════════════════════════════════════════════════════════

// AverageType identifies what period and scope an average aggregates.
type AverageType string

const (
	AverageMonthly  AverageType = "MONTHLY"
	AverageSemester AverageType = "SEMESTER"
	AverageAnnual   AverageType = "ANNUAL"
	AverageOverall  AverageType = "OVERALL"
)

// IsValid checks if the average type is one of the known values.
func (t AverageType) IsValid() bool {
	switch t {
	case AverageMonthly, AverageSemester, AverageAnnual, AverageOverall:
		return true
	}
	return false
}

// String returns the string representation.
func (t AverageType) String() string {
	return string(t)
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Average (derived record)
// ═══════════════════════════════════════════════════════════════════════════

// AverageKey is the unique identity of a derived average row.
// SubjectID is empty for overall averages; Semester is zero for annual ones.
type AverageKey struct {
	StudentID    shared.StudentID
	ClassID      shared.ClassID
	SubjectID    shared.SubjectID
	Semester     shared.Semester
	AcademicYear shared.AcademicYear
	AverageType  AverageType
}

// String renders the key as a stable colon-separated tuple. Used for the
// per-key recomputation lock and in log fields.
func (k AverageKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%d:%s:%s",
		k.StudentID, k.ClassID, k.SubjectID, k.Semester, k.AcademicYear, k.AverageType)
}

// GradeAverage is a materialized average row. It is owned entirely by the
// engine: never hand-edited, always overwritten whole by recomputation.
type GradeAverage struct {
	ID            string
	StudentID     shared.StudentID
	ClassID       shared.ClassID
	SubjectID     shared.SubjectID
	Semester      shared.Semester
	AcademicYear  shared.AcademicYear
	AverageType   AverageType
	AverageScore  float64
	LetterGrade   LetterGrade
	ClassRank     int
	SubjectRank   int
	TotalStudents int
	CalculatedAt  time.Time
}

// Key returns the unique identity tuple of this row.
func (a *GradeAverage) Key() AverageKey {
	return AverageKey{
		StudentID:    a.StudentID,
		ClassID:      a.ClassID,
		SubjectID:    a.SubjectID,
		Semester:     a.Semester,
		AcademicYear: a.AcademicYear,
		AverageType:  a.AverageType,
	}
}
