// Package grading contains the core domain model of the averaging engine:
// grade entries, assessment types, derived averages, the average calculator
// and the ranking policies.
package grading

import (
	"strings"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Assessment Types (reference data)
// ═══════════════════════════════════════════════════════════════════════════

// AssessmentCategory classifies an assessment type.
type AssessmentCategory string

const (
	CategoryMonthly  AssessmentCategory = "MONTHLY"
	CategorySemester AssessmentCategory = "SEMESTER"
	CategoryAnnual   AssessmentCategory = "ANNUAL"
)

// IsValid checks if the category is one of the known values.
func (c AssessmentCategory) IsValid() bool {
	switch c {
	case CategoryMonthly, CategorySemester, CategoryAnnual:
		return true
	}
	return false
}

// String returns the string representation.
func (c AssessmentCategory) String() string {
	return string(c)
}

// AssessmentType is reference data describing a category of graded event,
// e.g. "monthly exam 1", "semester exam". Rarely mutated.
type AssessmentType struct {
	Code       string
	Category   AssessmentCategory
	GradeLevel int
}

// Validate checks the assessment type fields.
func (a *AssessmentType) Validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return shared.NewDomainError("grading", "ValidateAssessmentType", shared.ErrEmptyValue,
			shared.CodeValidationError, "assessment code cannot be empty")
	}
	if !a.Category.IsValid() {
		return shared.NewDomainError("grading", "ValidateAssessmentType", shared.ErrInvalidInput,
			shared.CodeValidationError, "unknown assessment category")
	}
	return nil
}

// TypeIndex maps assessment codes to their types for quick classification.
type TypeIndex map[string]AssessmentType

// NewTypeIndex builds an index from a list of assessment types.
func NewTypeIndex(types []AssessmentType) TypeIndex {
	idx := make(TypeIndex, len(types))
	for _, t := range types {
		idx[t.Code] = t
	}
	return idx
}

// CategoryOf returns the category of a code, or false when unknown.
func (idx TypeIndex) CategoryOf(code string) (AssessmentCategory, bool) {
	t, ok := idx[code]
	if !ok {
		return "", false
	}
	return t.Category, true
}

// Has reports whether the code is a known assessment type.
func (idx TypeIndex) Has(code string) bool {
	_, ok := idx[code]
	return ok
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Entry
// ═══════════════════════════════════════════════════════════════════════════

// GradeEntry is a raw per-assessment score for one student.
type GradeEntry struct {
	ID                 string
	StudentID          shared.StudentID
	ClassID            shared.ClassID
	SubjectID          shared.SubjectID
	AssessmentTypeCode string
	Score              float64
	MaxScore           float64
	Semester           shared.Semester
	AcademicYear       shared.AcademicYear
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the entry's score fields.
// A negative score or max score, or a zero max score, is malformed input;
// a score above the max score is a range violation.
func (e *GradeEntry) Validate() error {
	if e.Score < 0 || e.MaxScore <= 0 {
		return shared.ErrInvalidScore
	}
	if e.Score > e.MaxScore {
		return shared.ErrScoreOutOfRange
	}
	if strings.TrimSpace(e.AssessmentTypeCode) == "" {
		return shared.NewDomainError("grading", "ValidateEntry", shared.ErrEmptyValue,
			shared.CodeValidationError, "assessment type code cannot be empty")
	}
	if !e.Semester.IsValid() {
		return shared.NewDomainError("grading", "ValidateEntry", shared.ErrValueOutOfRange,
			shared.CodeValidationError, "semester must be 1 or 2")
	}
	if !e.AcademicYear.IsValid() {
		return shared.NewDomainError("grading", "ValidateEntry", shared.ErrInvalidFormat,
			shared.CodeValidationError, "invalid academic year")
	}
	return nil
}

// Percentage returns the normalized score, clamped to [0, 100].
// Validate must pass before calling; a zero max score yields 0.
func (e *GradeEntry) Percentage() shared.Percentage {
	if e.MaxScore <= 0 {
		return shared.MinPercentage
	}
	p := shared.Percentage(e.Score / e.MaxScore * 100)
	return p.Clamp()
}
