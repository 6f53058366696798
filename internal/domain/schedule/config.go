// Package schedule contains the semester exam-schedule configuration:
// the per-teacher (or system default) list of assessments that make up a
// semester, its validation rules, and the teacher-over-default resolver.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// Monthly exam count bounds enforced at save time.
const (
	DefaultMinMonthlyExams = 1
	DefaultMaxMonthlyExams = 5
)

// SemesterExamCodeFor returns the conventional semester exam code used to
// address the config of a term, e.g. "SEMESTER_EXAM_1".
func SemesterExamCodeFor(s shared.Semester) string {
	return fmt.Sprintf("SEMESTER_EXAM_%d", int(s))
}

// ExamSlot is one position in a semester's exam schedule.
// Weight is a percentage share; zero means "no explicit weight" and the
// slot participates in a plain arithmetic mean.
type ExamSlot struct {
	AssessmentCode string  `json:"assessment_code"`
	Title          string  `json:"title"`
	DisplayOrder   int     `json:"display_order"`
	Weight         float64 `json:"weight,omitempty"`
}

// SemesterConfig is the exam schedule in effect for a teacher, or the
// system-wide default when TeacherID is empty.
type SemesterConfig struct {
	ID               string
	TeacherID        shared.TeacherID // empty means default config
	AcademicYear     shared.AcademicYear
	SemesterExamCode string
	ExamSchedule     []ExamSlot
	// MonthlyWeight/SemesterWeight override the monthly-vs-semester split
	// when both are set; zero means "use the engine default".
	MonthlyWeight  float64
	SemesterWeight float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDefault reports whether this is the system-wide default config.
func (c *SemesterConfig) IsDefault() bool {
	return c.TeacherID.IsDefault()
}

// HasExplicitSlotWeights reports whether every schedule slot carries a weight.
// Mixed weighted/unweighted schedules are rejected at validation time.
func (c *SemesterConfig) HasExplicitSlotWeights() bool {
	if len(c.ExamSchedule) == 0 {
		return false
	}
	for _, s := range c.ExamSchedule {
		if s.Weight == 0 {
			return false
		}
	}
	return true
}

// HasExplicitSplit reports whether the config overrides the
// monthly-vs-semester weight split.
func (c *SemesterConfig) HasExplicitSplit() bool {
	return c.MonthlyWeight > 0 && c.SemesterWeight > 0
}

// OrderedSchedule returns the exam slots sorted by display order.
func (c *SemesterConfig) OrderedSchedule() []ExamSlot {
	out := make([]ExamSlot, len(c.ExamSchedule))
	copy(out, c.ExamSchedule)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

// SlotsWithCode filters the ordered schedule to slots whose assessment code
// passes the given predicate.
func (c *SemesterConfig) SlotsWithCode(match func(code string) bool) []ExamSlot {
	var out []ExamSlot
	for _, s := range c.OrderedSchedule() {
		if match(s.AssessmentCode) {
			out = append(out, s)
		}
	}
	return out
}

// ValidationContext carries reference data needed to validate a config.
type ValidationContext struct {
	// KnownCode reports whether an assessment code exists as reference data.
	KnownCode func(code string) bool
	// CategoryOf returns the category string of a known code ("MONTHLY",
	// "SEMESTER", "ANNUAL") and whether the code is known.
	CategoryOf func(code string) (string, bool)
	// MinMonthlyExams/MaxMonthlyExams bound the monthly slot count.
	MinMonthlyExams int
	MaxMonthlyExams int
}

// Validate checks a semester config against reference data and the
// weighting rules. It never mutates stored state; callers reject the save
// on error and leave any prior config untouched.
func (c *SemesterConfig) Validate(vctx ValidationContext) error {
	if !c.AcademicYear.IsValid() {
		return shared.NewDomainError("schedule", "Validate", shared.ErrInvalidFormat,
			shared.CodeInvalidConfig, "invalid academic year")
	}
	if strings.TrimSpace(c.SemesterExamCode) == "" {
		return shared.NewDomainError("schedule", "Validate", shared.ErrEmptyValue,
			shared.CodeInvalidConfig, "semester exam code cannot be empty")
	}
	if len(c.ExamSchedule) == 0 {
		return shared.NewDomainError("schedule", "Validate", shared.ErrEmptyValue,
			shared.CodeInvalidConfig, "exam schedule cannot be empty")
	}

	monthlyCount := 0
	seen := make(map[string]bool, len(c.ExamSchedule))
	for _, slot := range c.ExamSchedule {
		code := strings.TrimSpace(slot.AssessmentCode)
		if code == "" {
			return shared.NewDomainError("schedule", "Validate", shared.ErrEmptyValue,
				shared.CodeInvalidConfig, "exam slot assessment code cannot be empty")
		}
		if seen[code] {
			return shared.NewDomainError("schedule", "Validate", shared.ErrInvalidInput,
				shared.CodeInvalidConfig, "duplicate assessment code in exam schedule: "+code)
		}
		seen[code] = true

		if vctx.KnownCode != nil && !vctx.KnownCode(code) {
			return shared.WrapError("schedule", "Validate", shared.ErrValidation,
				shared.CodeInvalidConfig, "unknown assessment code: "+code, shared.ErrUnknownAssessmentCode)
		}
		if vctx.CategoryOf != nil {
			if cat, ok := vctx.CategoryOf(code); ok && cat == "MONTHLY" {
				monthlyCount++
			}
		}
		if slot.Weight < 0 {
			return shared.NewDomainError("schedule", "Validate", shared.ErrNegativeValue,
				shared.CodeInvalidConfig, "slot weight cannot be negative")
		}
	}

	minExams := vctx.MinMonthlyExams
	maxExams := vctx.MaxMonthlyExams
	if minExams <= 0 {
		minExams = DefaultMinMonthlyExams
	}
	if maxExams <= 0 {
		maxExams = DefaultMaxMonthlyExams
	}
	if vctx.CategoryOf != nil && (monthlyCount < minExams || monthlyCount > maxExams) {
		return shared.ErrMonthlyExamCountOutOfRange
	}

	// Either every slot is weighted and the weights sum to exactly 100,
	// or no slot is weighted at all.
	if err := c.validateWeights(); err != nil {
		return err
	}

	if (c.MonthlyWeight > 0) != (c.SemesterWeight > 0) {
		return shared.NewDomainError("schedule", "Validate", shared.ErrInvalidInput,
			shared.CodeInvalidConfig, "monthly and semester weights must both be set or both be omitted")
	}
	if c.HasExplicitSplit() && !sumsTo100(c.MonthlyWeight, c.SemesterWeight) {
		return shared.ErrWeightsMustSumTo100
	}

	return nil
}

func (c *SemesterConfig) validateWeights() error {
	weighted := 0
	total := 0.0
	for _, slot := range c.ExamSchedule {
		if slot.Weight > 0 {
			weighted++
			total += slot.Weight
		}
	}
	if weighted == 0 {
		return nil
	}
	if weighted != len(c.ExamSchedule) {
		return shared.NewDomainError("schedule", "Validate", shared.ErrInvalidInput,
			shared.CodeInvalidConfig, "either all exam slots carry a weight or none do")
	}
	if !sumsTo100(total) {
		return shared.ErrWeightsMustSumTo100
	}
	return nil
}

// sumsTo100 checks an exact sum of 100 with a small float tolerance.
func sumsTo100(vals ...float64) bool {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	const eps = 1e-9
	return total > 100-eps && total < 100+eps
}
