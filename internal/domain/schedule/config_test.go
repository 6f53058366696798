package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

func validationCtx() ValidationContext {
	categories := map[string]string{
		"monthly-1":     "MONTHLY",
		"monthly-2":     "MONTHLY",
		"monthly-3":     "MONTHLY",
		"monthly-4":     "MONTHLY",
		"monthly-5":     "MONTHLY",
		"monthly-6":     "MONTHLY",
		"semester-exam": "SEMESTER",
	}
	return ValidationContext{
		KnownCode: func(code string) bool {
			_, ok := categories[code]
			return ok
		},
		CategoryOf: func(code string) (string, bool) {
			c, ok := categories[code]
			return c, ok
		},
		MinMonthlyExams: 1,
		MaxMonthlyExams: 5,
	}
}

func validConfig() *SemesterConfig {
	return &SemesterConfig{
		TeacherID:        "5f0c2a1e-0000-4000-8000-0000000000aa",
		AcademicYear:     "2025/2026",
		SemesterExamCode: "sem1",
		ExamSchedule: []ExamSlot{
			{AssessmentCode: "monthly-1", Title: "Monthly 1", DisplayOrder: 1},
			{AssessmentCode: "monthly-2", Title: "Monthly 2", DisplayOrder: 2},
			{AssessmentCode: "semester-exam", Title: "Semester Exam", DisplayOrder: 3},
		},
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate(validationCtx()))
}

func TestValidate_WeightsMustSumTo100(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = []ExamSlot{
		{AssessmentCode: "monthly-1", DisplayOrder: 1, Weight: 50},
		{AssessmentCode: "monthly-2", DisplayOrder: 2, Weight: 45},
	}

	err := cfg.Validate(validationCtx())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrWeightsMustSumTo100)
	assert.Equal(t, shared.CodeWeightsMustSum100, shared.Code(err))
}

func TestValidate_WeightsSummingTo100Pass(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = []ExamSlot{
		{AssessmentCode: "monthly-1", DisplayOrder: 1, Weight: 60},
		{AssessmentCode: "monthly-2", DisplayOrder: 2, Weight: 40},
	}
	assert.NoError(t, cfg.Validate(validationCtx()))
}

func TestValidate_MixedWeightsRejected(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = []ExamSlot{
		{AssessmentCode: "monthly-1", DisplayOrder: 1, Weight: 100},
		{AssessmentCode: "monthly-2", DisplayOrder: 2},
	}
	assert.Error(t, cfg.Validate(validationCtx()))
}

func TestValidate_MonthlyExamCountOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = []ExamSlot{
		{AssessmentCode: "monthly-1", DisplayOrder: 1},
		{AssessmentCode: "monthly-2", DisplayOrder: 2},
		{AssessmentCode: "monthly-3", DisplayOrder: 3},
		{AssessmentCode: "monthly-4", DisplayOrder: 4},
		{AssessmentCode: "monthly-5", DisplayOrder: 5},
		{AssessmentCode: "monthly-6", DisplayOrder: 6},
	}

	err := cfg.Validate(validationCtx())
	assert.ErrorIs(t, err, shared.ErrMonthlyExamCountOutOfRange)

	cfg.ExamSchedule = []ExamSlot{{AssessmentCode: "semester-exam", DisplayOrder: 1}}
	err = cfg.Validate(validationCtx())
	assert.ErrorIs(t, err, shared.ErrMonthlyExamCountOutOfRange)
}

func TestValidate_UnknownAssessmentCode(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = append(cfg.ExamSchedule, ExamSlot{AssessmentCode: "no-such-code", DisplayOrder: 4})

	err := cfg.Validate(validationCtx())
	require.Error(t, err)
	assert.Equal(t, shared.CodeInvalidConfig, shared.Code(err))
}

func TestValidate_DuplicateCode(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = append(cfg.ExamSchedule, ExamSlot{AssessmentCode: "monthly-1", DisplayOrder: 4})
	assert.Error(t, cfg.Validate(validationCtx()))
}

func TestValidate_SplitOverride(t *testing.T) {
	cfg := validConfig()
	cfg.MonthlyWeight = 70
	cfg.SemesterWeight = 30
	assert.NoError(t, cfg.Validate(validationCtx()))

	cfg.SemesterWeight = 25
	assert.ErrorIs(t, cfg.Validate(validationCtx()), shared.ErrWeightsMustSumTo100)

	cfg.MonthlyWeight = 70
	cfg.SemesterWeight = 0
	assert.Error(t, cfg.Validate(validationCtx()))
}

func TestOrderedSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.ExamSchedule = []ExamSlot{
		{AssessmentCode: "monthly-2", DisplayOrder: 2},
		{AssessmentCode: "monthly-1", DisplayOrder: 1},
	}

	ordered := cfg.OrderedSchedule()
	require.Len(t, ordered, 2)
	assert.Equal(t, "monthly-1", ordered[0].AssessmentCode)
	assert.Equal(t, "monthly-2", ordered[1].AssessmentCode)
}
