package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

type evictedConfig struct {
	teacherID shared.TeacherID
	year      shared.AcademicYear
	examCode  string
}

// recordingConfigCache records evictions so tests can assert a stale
// cached config never outlives its row.
type recordingConfigCache struct {
	schedule.NoopConfigCache
	evicted []evictedConfig
}

func (c *recordingConfigCache) Evict(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) {
	c.evicted = append(c.evicted, evictedConfig{teacherID, year, examCode})
}

type configFixture struct {
	handler    *SaveConfigHandler
	configRepo *fakeConfigRepo
	cache      *recordingConfigCache
	publisher  *capturePublisher
}

func newConfigFixture(t *testing.T) *configFixture {
	t.Helper()

	configRepo := newFakeConfigRepo()
	cache := &recordingConfigCache{}
	publisher := &capturePublisher{}

	handler := NewSaveConfigHandler(configRepo, newFakeTypeRepo(), cache, publisher,
		schedule.DefaultMinMonthlyExams, schedule.DefaultMaxMonthlyExams, nil)

	return &configFixture{
		handler:    handler,
		configRepo: configRepo,
		cache:      cache,
		publisher:  publisher,
	}
}

func saveConfigCommand(teacherID string) SaveConfigCommand {
	return SaveConfigCommand{
		TeacherID:        teacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
		ExamSchedule: []ExamSlotInput{
			{AssessmentCode: "MONTHLY_EXAM_1", Title: "Monthly 1", DisplayOrder: 1},
			{AssessmentCode: "MONTHLY_EXAM_2", Title: "Monthly 2", DisplayOrder: 2},
			{AssessmentCode: "SEMESTER_EXAM_1", Title: "Semester Exam", DisplayOrder: 3},
		},
	}
}

func TestSaveConfig_DefaultConfig(t *testing.T) {
	f := newConfigFixture(t)

	result, err := f.handler.Handle(context.Background(), saveConfigCommand(""))
	require.NoError(t, err)

	assert.True(t, result.IsDefault)
	assert.NotEmpty(t, result.ConfigID)

	stored, ok := f.configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")]
	require.True(t, ok)
	assert.Len(t, stored.ExamSchedule, 3)

	require.Len(t, f.cache.evicted, 1)
	assert.Equal(t, evictedConfig{"", testYear, "SEMESTER_EXAM_1"}, f.cache.evicted[0])

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, shared.EventConfigSaved, f.publisher.events[0].EventType())
}

func TestSaveConfig_TeacherConfigDoesNotTouchDefault(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, saveConfigCommand(""))
	require.NoError(t, err)
	defaultBefore := f.configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")]

	result, err := f.handler.Handle(ctx, saveConfigCommand(testTeacherID))
	require.NoError(t, err)
	assert.False(t, result.IsDefault)

	assert.Equal(t, defaultBefore, f.configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")])
	_, ok := f.configRepo.configs[configKey(testTeacherID, testYear, "SEMESTER_EXAM_1")]
	assert.True(t, ok)
}

func TestSaveConfig_WeightsMustSumTo100(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, saveConfigCommand(""))
	require.NoError(t, err)
	before := f.configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")]

	cmd := saveConfigCommand("")
	cmd.ExamSchedule[0].Weight = 40
	cmd.ExamSchedule[1].Weight = 30
	cmd.ExamSchedule[2].Weight = 20

	_, err = f.handler.Handle(ctx, cmd)
	require.Error(t, err)
	assert.Equal(t, shared.CodeWeightsMustSum100, shared.Code(err))

	// The rejected save leaves the stored config exactly as it was.
	assert.Equal(t, before, f.configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")])
}

func TestSaveConfig_MonthlyExamCountOutOfRange(t *testing.T) {
	configRepo := newFakeConfigRepo()
	handler := NewSaveConfigHandler(configRepo, newFakeTypeRepo(), nil, nil, 1, 2, nil)

	cmd := saveConfigCommand("")
	cmd.ExamSchedule = []ExamSlotInput{
		{AssessmentCode: "MONTHLY_EXAM_1", DisplayOrder: 1},
		{AssessmentCode: "MONTHLY_EXAM_2", DisplayOrder: 2},
		{AssessmentCode: "MONTHLY_EXAM_3", DisplayOrder: 3},
		{AssessmentCode: "SEMESTER_EXAM_1", DisplayOrder: 4},
	}

	_, err := handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, shared.CodeMonthlyExamCountRange, shared.Code(err))
	assert.Empty(t, configRepo.configs)
}

func TestSaveConfig_UnknownAssessmentCode(t *testing.T) {
	f := newConfigFixture(t)

	cmd := saveConfigCommand("")
	cmd.ExamSchedule[0].AssessmentCode = "POP_QUIZ"

	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, shared.CodeInvalidConfig, shared.Code(err))
	assert.Empty(t, f.configRepo.configs)
	assert.Empty(t, f.cache.evicted)
}

func TestSaveConfig_InvalidCommand(t *testing.T) {
	f := newConfigFixture(t)

	cmd := saveConfigCommand("")
	cmd.AcademicYear = "2025"

	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestDeleteConfig_TeacherFallsBackToDefault(t *testing.T) {
	f := newConfigFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, saveConfigCommand(""))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, saveConfigCommand(testTeacherID))
	require.NoError(t, err)
	f.cache.evicted = nil

	result, err := f.handler.HandleDelete(ctx, DeleteConfigCommand{
		TeacherID:        testTeacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
	})
	require.NoError(t, err)
	assert.False(t, result.IsDefault)

	_, ok := f.configRepo.configs[configKey(testTeacherID, testYear, "SEMESTER_EXAM_1")]
	assert.False(t, ok)
	_, ok = f.configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")]
	assert.True(t, ok)

	require.Len(t, f.cache.evicted, 1)
	assert.Equal(t, shared.TeacherID(testTeacherID), f.cache.evicted[0].teacherID)

	// The resolver now falls back to the default.
	resolver := schedule.NewResolver(f.configRepo)
	cfg, err := resolver.Resolve(ctx, testTeacherID, testYear, "SEMESTER_EXAM_1")
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestDeleteConfig_NotFound(t *testing.T) {
	f := newConfigFixture(t)

	_, err := f.handler.HandleDelete(context.Background(), DeleteConfigCommand{
		TeacherID:        testTeacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, shared.CodeConfigNotFound, shared.Code(err))
}
