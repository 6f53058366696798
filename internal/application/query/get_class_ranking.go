package query

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS RANKING QUERY
// Returns a class cohort ordered by rank, for one subject or across all
// subjects, cache-aside over the persisted rows.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassRankingQuery contains the parameters for a ranking lookup.
type GetClassRankingQuery struct {
	// ClassID is the class cohort to rank.
	ClassID string

	// SubjectID narrows the ranking to one subject. Empty selects the
	// cross-subject overall ranking.
	SubjectID string

	// Semester is the term (1 or 2); zero selects annual rows.
	Semester int

	// AcademicYear in "YYYY/YYYY" form.
	AcademicYear string

	// AverageType selects which averages are ranked. Defaults to SEMESTER
	// for a subject ranking, OVERALL for the cross-subject one.
	AverageType string

	// Limit caps the returned rows; zero returns the whole cohort.
	Limit int
}

// Validate validates the query parameters.
func (q *GetClassRankingQuery) Validate() error {
	if !shared.ClassID(q.ClassID).IsValid() {
		return errors.New("get_class_ranking: valid class_id is required")
	}
	if q.SubjectID != "" && !shared.SubjectID(q.SubjectID).IsValid() {
		return errors.New("get_class_ranking: subject_id must be a valid UUID or empty")
	}
	if q.Semester != 0 && !shared.Semester(q.Semester).IsValid() {
		return errors.New("get_class_ranking: semester must be 1 or 2")
	}
	if !shared.AcademicYear(q.AcademicYear).IsValid() {
		return errors.New("get_class_ranking: academic_year must be consecutive years as YYYY/YYYY")
	}
	if q.AverageType == "" {
		if q.SubjectID == "" {
			q.AverageType = string(grading.AverageOverall)
		} else {
			q.AverageType = string(grading.AverageSemester)
		}
	}
	if !grading.AverageType(q.AverageType).IsValid() {
		return errors.New("get_class_ranking: unknown average_type")
	}
	if q.Limit < 0 {
		return errors.New("get_class_ranking: limit cannot be negative")
	}
	return nil
}

// RankingEntryDTO is one cohort member's position.
type RankingEntryDTO struct {
	Rank          int     `json:"rank"`
	StudentID     string  `json:"student_id"`
	AverageScore  float64 `json:"average_score"`
	LetterGrade   string  `json:"letter_grade"`
	TotalStudents int     `json:"total_students"`
}

// ClassRankingResult is the full response for one cohort.
type ClassRankingResult struct {
	ClassID      string            `json:"class_id"`
	SubjectID    string            `json:"subject_id,omitempty"`
	Semester     int               `json:"semester,omitempty"`
	AcademicYear string            `json:"academic_year"`
	AverageType  string            `json:"average_type"`
	Entries      []RankingEntryDTO `json:"entries"`
	FromCache    bool              `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetClassRankingHandler handles GetClassRankingQuery.
type GetClassRankingHandler struct {
	avgRepo grading.AverageRepository
	cache   grading.AverageCache
	logger  *slog.Logger
}

// NewGetClassRankingHandler creates a new GetClassRankingHandler.
func NewGetClassRankingHandler(avgRepo grading.AverageRepository, cache grading.AverageCache, logger *slog.Logger) *GetClassRankingHandler {
	if cache == nil {
		cache = grading.NoopAverageCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetClassRankingHandler{avgRepo: avgRepo, cache: cache, logger: logger}
}

// Handle returns the cohort ordered by stored rank. The full cohort is
// what gets cached; Limit is applied after.
func (h *GetClassRankingHandler) Handle(ctx context.Context, q GetClassRankingQuery) (*ClassRankingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, validationError("GetClassRanking", err)
	}

	classID := shared.ClassID(q.ClassID)
	subjectID := shared.SubjectID(q.SubjectID)
	semester := shared.Semester(q.Semester)
	year := shared.AcademicYear(q.AcademicYear)
	avgType := grading.AverageType(q.AverageType)

	avgs, fromCache := h.cache.GetRanking(ctx, classID, subjectID, semester, year, avgType)
	if !fromCache {
		var err error
		avgs, err = h.avgRepo.ListForClass(ctx, classID, subjectID, semester, year, avgType)
		if err != nil {
			return nil, err
		}
		h.cache.PutRanking(ctx, classID, subjectID, semester, year, avgType, avgs)
	}

	sort.SliceStable(avgs, func(i, j int) bool {
		return avgs[i].AverageScore > avgs[j].AverageScore
	})

	result := &ClassRankingResult{
		ClassID:      q.ClassID,
		SubjectID:    q.SubjectID,
		Semester:     q.Semester,
		AcademicYear: q.AcademicYear,
		AverageType:  q.AverageType,
		Entries:      make([]RankingEntryDTO, 0, len(avgs)),
		FromCache:    fromCache,
	}
	for i := range avgs {
		if q.Limit > 0 && len(result.Entries) >= q.Limit {
			break
		}
		a := &avgs[i]
		rank := a.ClassRank
		if !subjectID.IsOverall() {
			rank = a.SubjectRank
		}
		result.Entries = append(result.Entries, RankingEntryDTO{
			Rank:          rank,
			StudentID:     string(a.StudentID),
			AverageScore:  a.AverageScore,
			LetterGrade:   string(a.LetterGrade),
			TotalStudents: a.TotalStudents,
		})
	}
	return result, nil
}
