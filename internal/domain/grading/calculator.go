package grading

import (
	"math"

	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// Default monthly-vs-semester weight split used when a config does not
// carry an explicit override: the monthly average contributes 60% of the
// semester average, the semester exam 40%.
const (
	DefaultMonthlyWeight  = 60.0
	DefaultSemesterWeight = 40.0
)

// Calculator aggregates raw assessment scores into monthly, semester,
// annual and overall averages. All methods are pure: they take the full
// input set and produce a value or a domain error, and never touch
// persistence.
type Calculator struct {
	monthlyWeight  float64
	semesterWeight float64
}

// NewCalculator creates a Calculator with an explicit default weight split.
// Both weights zero means the engine defaults; otherwise they must sum to 100.
func NewCalculator(monthlyWeight, semesterWeight float64) (*Calculator, error) {
	if monthlyWeight == 0 && semesterWeight == 0 {
		return DefaultCalculator(), nil
	}
	if monthlyWeight <= 0 || semesterWeight <= 0 || !almostEqual(monthlyWeight+semesterWeight, 100) {
		return nil, shared.ErrWeightsMustSumTo100
	}
	return &Calculator{monthlyWeight: monthlyWeight, semesterWeight: semesterWeight}, nil
}

// DefaultCalculator returns a Calculator with the 60/40 default split.
func DefaultCalculator() *Calculator {
	return &Calculator{monthlyWeight: DefaultMonthlyWeight, semesterWeight: DefaultSemesterWeight}
}

// ComputeMonthlyAverage aggregates the student's monthly exam percentages
// under the resolved exam schedule.
//
// Every MONTHLY slot of the schedule must have a recorded entry; a partial
// set fails with shared.ErrMissingMonthlyExams rather than silently
// averaging what is there. When the schedule carries explicit per-slot
// weights the result is the weighted sum, otherwise the arithmetic mean.
func (c *Calculator) ComputeMonthlyAverage(entries []GradeEntry, cfg *schedule.SemesterConfig, types TypeIndex) (float64, error) {
	slots := cfg.SlotsWithCode(func(code string) bool {
		cat, ok := types.CategoryOf(code)
		return ok && cat == CategoryMonthly
	})
	if len(slots) == 0 {
		return 0, shared.ErrInsufficientGrades
	}

	byCode := indexEntriesByCode(entries)

	weighted := cfg.HasExplicitSlotWeights()
	sum := 0.0
	weightSum := 0.0
	for _, slot := range slots {
		entry, ok := byCode[slot.AssessmentCode]
		if !ok {
			return 0, shared.ErrMissingMonthlyExams
		}
		if err := entry.Validate(); err != nil {
			return 0, err
		}
		pct := entry.Percentage().Float64()
		if weighted {
			sum += pct * slot.Weight
			weightSum += slot.Weight
		} else {
			sum += pct
		}
	}

	// Slot weights sum to 100 across the whole schedule, semester slot
	// included, so the monthly slots normalize among themselves.
	avg := 0.0
	if weighted {
		avg = sum / weightSum
	} else {
		avg = sum / float64(len(slots))
	}
	return checkedAverage(avg, "ComputeMonthlyAverage")
}

// ComputeSemesterAverage combines the monthly average with the SEMESTER
// exam score using the config's weight split, or the engine default when
// the config carries none. A missing semester exam entry fails with
// shared.ErrMissingSemesterExam.
func (c *Calculator) ComputeSemesterAverage(monthlyAverage float64, entries []GradeEntry, cfg *schedule.SemesterConfig, types TypeIndex) (float64, error) {
	semesterEntry, err := findSemesterEntry(entries, cfg, types)
	if err != nil {
		return 0, err
	}
	if err := semesterEntry.Validate(); err != nil {
		return 0, err
	}

	monthlyW, semesterW := c.monthlyWeight, c.semesterWeight
	if cfg.HasExplicitSplit() {
		monthlyW, semesterW = cfg.MonthlyWeight, cfg.SemesterWeight
	}

	avg := monthlyAverage*monthlyW/100 + semesterEntry.Percentage().Float64()*semesterW/100
	return checkedAverage(avg, "ComputeSemesterAverage")
}

// ComputeAnnualAverage combines a subject's per-semester averages into the
// annual average by arithmetic mean.
func (c *Calculator) ComputeAnnualAverage(semesterAverages []float64) (float64, error) {
	return c.meanOf(semesterAverages, "ComputeAnnualAverage")
}

// ComputeOverallAverage combines all subjects' semester averages into one
// cross-subject average by arithmetic mean.
func (c *Calculator) ComputeOverallAverage(subjectAverages []float64) (float64, error) {
	return c.meanOf(subjectAverages, "ComputeOverallAverage")
}

func (c *Calculator) meanOf(values []float64, op string) (float64, error) {
	if len(values) == 0 {
		return 0, shared.ErrInsufficientGrades
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return checkedAverage(sum/float64(len(values)), op)
}

// findSemesterEntry locates the student's SEMESTER-category entry.
// The schedule's semester slot wins when present; otherwise any entry whose
// assessment type is SEMESTER-category qualifies.
func findSemesterEntry(entries []GradeEntry, cfg *schedule.SemesterConfig, types TypeIndex) (*GradeEntry, error) {
	slots := cfg.SlotsWithCode(func(code string) bool {
		cat, ok := types.CategoryOf(code)
		return ok && cat == CategorySemester
	})

	byCode := indexEntriesByCode(entries)
	for _, slot := range slots {
		if entry, ok := byCode[slot.AssessmentCode]; ok {
			return entry, nil
		}
	}
	if len(slots) == 0 {
		for i := range entries {
			cat, ok := types.CategoryOf(entries[i].AssessmentTypeCode)
			if ok && cat == CategorySemester {
				return &entries[i], nil
			}
		}
	}
	return nil, shared.ErrMissingSemesterExam
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func indexEntriesByCode(entries []GradeEntry) map[string]*GradeEntry {
	byCode := make(map[string]*GradeEntry, len(entries))
	for i := range entries {
		byCode[entries[i].AssessmentTypeCode] = &entries[i]
	}
	return byCode
}

// checkedAverage guards against arithmetic on corrupt data leaking out as
// a persisted value.
func checkedAverage(avg float64, op string) (float64, error) {
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0, shared.WrapError("grading", op, shared.ErrCalculation,
			shared.CodeCalculationError, "average is not a finite number", shared.ErrCalculationFailed)
	}
	if avg < 0 {
		avg = 0
	}
	if avg > 100 {
		avg = 100
	}
	return avg, nil
}
