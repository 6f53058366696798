// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT AVERAGE QUERY
// Returns every stored average of one student for an academic year,
// cache-aside over the persisted rows.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentAverageQuery contains the parameters for a student average lookup.
type GetStudentAverageQuery struct {
	// StudentID is the student to look up.
	StudentID string

	// AcademicYear in "YYYY/YYYY" form.
	AcademicYear string

	// AverageType optionally narrows the result to one average type.
	AverageType string

	// Semester optionally narrows the result to one term (1 or 2).
	Semester int
}

// Validate validates the query parameters.
func (q *GetStudentAverageQuery) Validate() error {
	if !shared.StudentID(q.StudentID).IsValid() {
		return errors.New("get_student_average: valid student_id is required")
	}
	if !shared.AcademicYear(q.AcademicYear).IsValid() {
		return errors.New("get_student_average: academic_year must be consecutive years as YYYY/YYYY")
	}
	if q.AverageType != "" && !grading.AverageType(q.AverageType).IsValid() {
		return errors.New("get_student_average: unknown average_type")
	}
	if q.Semester != 0 && !shared.Semester(q.Semester).IsValid() {
		return errors.New("get_student_average: semester must be 1 or 2")
	}
	return nil
}

// AverageDTO is one average row shaped for presentation.
type AverageDTO struct {
	StudentID     string    `json:"student_id"`
	ClassID       string    `json:"class_id"`
	SubjectID     string    `json:"subject_id,omitempty"`
	Semester      int       `json:"semester,omitempty"`
	AcademicYear  string    `json:"academic_year"`
	AverageType   string    `json:"average_type"`
	AverageScore  float64   `json:"average_score"`
	LetterGrade   string    `json:"letter_grade"`
	ClassRank     int       `json:"class_rank,omitempty"`
	SubjectRank   int       `json:"subject_rank,omitempty"`
	TotalStudents int       `json:"total_students,omitempty"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

// StudentAverageResult is the full response for one student.
type StudentAverageResult struct {
	StudentID    string       `json:"student_id"`
	AcademicYear string       `json:"academic_year"`
	Averages     []AverageDTO `json:"averages"`
	FromCache    bool         `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentAverageHandler handles GetStudentAverageQuery.
type GetStudentAverageHandler struct {
	avgRepo grading.AverageRepository
	cache   grading.AverageCache
	logger  *slog.Logger
}

// NewGetStudentAverageHandler creates a new GetStudentAverageHandler.
func NewGetStudentAverageHandler(avgRepo grading.AverageRepository, cache grading.AverageCache, logger *slog.Logger) *GetStudentAverageHandler {
	if cache == nil {
		cache = grading.NoopAverageCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetStudentAverageHandler{avgRepo: avgRepo, cache: cache, logger: logger}
}

// Handle returns the student's averages: cached when fresh, loaded and
// cached on a miss. The unfiltered row set is what gets cached, so every
// filter combination shares one entry.
func (h *GetStudentAverageHandler) Handle(ctx context.Context, q GetStudentAverageQuery) (*StudentAverageResult, error) {
	if err := q.Validate(); err != nil {
		return nil, validationError("GetStudentAverage", err)
	}

	studentID := shared.StudentID(q.StudentID)
	year := shared.AcademicYear(q.AcademicYear)

	avgs, fromCache := h.cache.GetStudentAverages(ctx, studentID, year)
	if !fromCache {
		var err error
		avgs, err = h.avgRepo.ListForStudent(ctx, studentID, year)
		if err != nil {
			return nil, err
		}
		h.cache.PutStudentAverages(ctx, studentID, year, avgs)
	}

	result := &StudentAverageResult{
		StudentID:    q.StudentID,
		AcademicYear: q.AcademicYear,
		Averages:     make([]AverageDTO, 0, len(avgs)),
		FromCache:    fromCache,
	}
	for i := range avgs {
		a := &avgs[i]
		if q.AverageType != "" && string(a.AverageType) != q.AverageType {
			continue
		}
		if q.Semester != 0 && int(a.Semester) != q.Semester {
			continue
		}
		result.Averages = append(result.Averages, toAverageDTO(a))
	}
	return result, nil
}

func toAverageDTO(a *grading.GradeAverage) AverageDTO {
	return AverageDTO{
		StudentID:     string(a.StudentID),
		ClassID:       string(a.ClassID),
		SubjectID:     string(a.SubjectID),
		Semester:      int(a.Semester),
		AcademicYear:  string(a.AcademicYear),
		AverageType:   string(a.AverageType),
		AverageScore:  a.AverageScore,
		LetterGrade:   string(a.LetterGrade),
		ClassRank:     a.ClassRank,
		SubjectRank:   a.SubjectRank,
		TotalStudents: a.TotalStudents,
		CalculatedAt:  a.CalculatedAt,
	}
}
