package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

const (
	testStudentID = "5f0c2a1e-0000-4000-8000-000000000001"
	testStudent2  = "5f0c2a1e-0000-4000-8000-000000000002"
	testClassID   = "5f0c2a1e-0000-4000-8000-0000000000c1"
	testSubjectID = "5f0c2a1e-0000-4000-8000-0000000000a1"
	testTeacherID = "5f0c2a1e-0000-4000-8000-0000000000e1"
	testYear      = "2025/2026"
)

// ─────────────────────────────────────────────────────────────────────────────
// FAKES
// ─────────────────────────────────────────────────────────────────────────────

type fakeAverageRepo struct {
	rows  []grading.GradeAverage
	calls int
}

func (r *fakeAverageRepo) Upsert(_ context.Context, avg *grading.GradeAverage) error {
	r.rows = append(r.rows, *avg)
	return nil
}

func (r *fakeAverageRepo) UpsertAll(_ context.Context, avgs []grading.GradeAverage) error {
	r.rows = append(r.rows, avgs...)
	return nil
}

func (r *fakeAverageRepo) Find(_ context.Context, key grading.AverageKey) (*grading.GradeAverage, error) {
	for i := range r.rows {
		if r.rows[i].Key() == key {
			return &r.rows[i], nil
		}
	}
	return nil, shared.ErrAverageNotFound
}

func (r *fakeAverageRepo) ListForClass(_ context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, error) {
	r.calls++
	var out []grading.GradeAverage
	for _, row := range r.rows {
		if row.ClassID == classID && row.SubjectID == subjectID &&
			row.Semester == semester && row.AcademicYear == year && row.AverageType == avgType {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAverageRepo) ListSubjectAveragesForClass(_ context.Context, classID shared.ClassID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, error) {
	r.calls++
	var out []grading.GradeAverage
	for _, row := range r.rows {
		if row.ClassID == classID && !row.SubjectID.IsOverall() &&
			row.Semester == semester && row.AcademicYear == year && row.AverageType == avgType {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAverageRepo) ListForStudent(_ context.Context, studentID shared.StudentID, year shared.AcademicYear) ([]grading.GradeAverage, error) {
	r.calls++
	var out []grading.GradeAverage
	for _, row := range r.rows {
		if row.StudentID == studentID && row.AcademicYear == year {
			out = append(out, row)
		}
	}
	return out, nil
}

// memoryAverageCache is a map-backed AverageCache for cache-aside tests.
type memoryAverageCache struct {
	students map[string][]grading.GradeAverage
	rankings map[string][]grading.GradeAverage
}

func newMemoryAverageCache() *memoryAverageCache {
	return &memoryAverageCache{
		students: make(map[string][]grading.GradeAverage),
		rankings: make(map[string][]grading.GradeAverage),
	}
}

func studentKey(id shared.StudentID, year shared.AcademicYear) string {
	return string(id) + "|" + string(year)
}

func rankingKey(classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) string {
	return string(classID) + "|" + string(subjectID) + "|" + string(year) + "|" + string(avgType)
}

func (c *memoryAverageCache) GetStudentAverages(_ context.Context, id shared.StudentID, year shared.AcademicYear) ([]grading.GradeAverage, bool) {
	avgs, ok := c.students[studentKey(id, year)]
	return avgs, ok
}

func (c *memoryAverageCache) PutStudentAverages(_ context.Context, id shared.StudentID, year shared.AcademicYear, avgs []grading.GradeAverage) {
	c.students[studentKey(id, year)] = avgs
}

func (c *memoryAverageCache) GetRanking(_ context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, bool) {
	avgs, ok := c.rankings[rankingKey(classID, subjectID, semester, year, avgType)]
	return avgs, ok
}

func (c *memoryAverageCache) PutRanking(_ context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType, avgs []grading.GradeAverage) {
	c.rankings[rankingKey(classID, subjectID, semester, year, avgType)] = avgs
}

func (c *memoryAverageCache) EvictStudent(_ context.Context, id shared.StudentID) {
	for key := range c.students {
		delete(c.students, key)
	}
}

func (c *memoryAverageCache) EvictClass(_ context.Context, id shared.ClassID) {
	for key := range c.rankings {
		delete(c.rankings, key)
	}
}

func averageRow(studentID string, avgType grading.AverageType, score float64, rank int) grading.GradeAverage {
	return grading.GradeAverage{
		StudentID:     shared.StudentID(studentID),
		ClassID:       testClassID,
		SubjectID:     testSubjectID,
		Semester:      shared.FirstSemester,
		AcademicYear:  testYear,
		AverageType:   avgType,
		AverageScore:  score,
		LetterGrade:   grading.LetterGradeFor(score),
		ClassRank:     rank,
		SubjectRank:   rank,
		TotalStudents: 2,
		CalculatedAt:  time.Now().UTC(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// STUDENT AVERAGES
// ─────────────────────────────────────────────────────────────────────────────

func TestGetStudentAverage_CacheAside(t *testing.T) {
	repo := &fakeAverageRepo{rows: []grading.GradeAverage{
		averageRow(testStudentID, grading.AverageMonthly, 85, 0),
		averageRow(testStudentID, grading.AverageSemester, 79, 1),
	}}
	cache := newMemoryAverageCache()
	handler := NewGetStudentAverageHandler(repo, cache, nil)
	ctx := context.Background()

	q := GetStudentAverageQuery{StudentID: testStudentID, AcademicYear: testYear}

	result, err := handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Len(t, result.Averages, 2)
	assert.Equal(t, 1, repo.calls)

	// The second read is served by the cache.
	result, err = handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Len(t, result.Averages, 2)
	assert.Equal(t, 1, repo.calls)
}

func TestGetStudentAverage_FiltersApplyAfterCaching(t *testing.T) {
	repo := &fakeAverageRepo{rows: []grading.GradeAverage{
		averageRow(testStudentID, grading.AverageMonthly, 85, 0),
		averageRow(testStudentID, grading.AverageSemester, 79, 1),
	}}
	cache := newMemoryAverageCache()
	handler := NewGetStudentAverageHandler(repo, cache, nil)
	ctx := context.Background()

	result, err := handler.Handle(ctx, GetStudentAverageQuery{
		StudentID:    testStudentID,
		AcademicYear: testYear,
		AverageType:  string(grading.AverageSemester),
	})
	require.NoError(t, err)
	require.Len(t, result.Averages, 1)
	assert.Equal(t, string(grading.AverageSemester), result.Averages[0].AverageType)
	assert.InDelta(t, 79.0, result.Averages[0].AverageScore, 1e-9)

	// The unfiltered set was cached, so a different filter still hits.
	result, err = handler.Handle(ctx, GetStudentAverageQuery{
		StudentID:    testStudentID,
		AcademicYear: testYear,
		AverageType:  string(grading.AverageMonthly),
	})
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	require.Len(t, result.Averages, 1)
	assert.Equal(t, 1, repo.calls)
}

func TestGetStudentAverage_InvalidQuery(t *testing.T) {
	handler := NewGetStudentAverageHandler(&fakeAverageRepo{}, nil, nil)

	_, err := handler.Handle(context.Background(), GetStudentAverageQuery{
		StudentID:    "not-a-uuid",
		AcademicYear: testYear,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGetStudentAverage_NoRows(t *testing.T) {
	handler := NewGetStudentAverageHandler(&fakeAverageRepo{}, nil, nil)

	result, err := handler.Handle(context.Background(), GetStudentAverageQuery{
		StudentID:    testStudentID,
		AcademicYear: testYear,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Averages)
}

// ─────────────────────────────────────────────────────────────────────────────
// CLASS RANKING
// ─────────────────────────────────────────────────────────────────────────────

func TestGetClassRanking_OrderedByScore(t *testing.T) {
	repo := &fakeAverageRepo{rows: []grading.GradeAverage{
		averageRow(testStudentID, grading.AverageSemester, 79, 2),
		averageRow(testStudent2, grading.AverageSemester, 90, 1),
	}}
	handler := NewGetClassRankingHandler(repo, newMemoryAverageCache(), nil)

	result, err := handler.Handle(context.Background(), GetClassRankingQuery{
		ClassID:      testClassID,
		SubjectID:    testSubjectID,
		Semester:     1,
		AcademicYear: testYear,
	})
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, testStudent2, result.Entries[0].StudentID)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, testStudentID, result.Entries[1].StudentID)
	assert.Equal(t, 2, result.Entries[1].Rank)
	assert.Equal(t, string(grading.AverageSemester), result.AverageType)
}

func TestGetClassRanking_CacheAsideAndLimit(t *testing.T) {
	repo := &fakeAverageRepo{rows: []grading.GradeAverage{
		averageRow(testStudentID, grading.AverageSemester, 79, 2),
		averageRow(testStudent2, grading.AverageSemester, 90, 1),
	}}
	handler := NewGetClassRankingHandler(repo, newMemoryAverageCache(), nil)
	ctx := context.Background()

	q := GetClassRankingQuery{
		ClassID:      testClassID,
		SubjectID:    testSubjectID,
		Semester:     1,
		AcademicYear: testYear,
		Limit:        1,
	}

	result, err := handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, testStudent2, result.Entries[0].StudentID)

	// The full cohort was cached; the limit is applied on read.
	q.Limit = 0
	result, err = handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 1, repo.calls)
}

func TestGetClassRanking_NoSubjectDefaultsToOverall(t *testing.T) {
	first := averageRow(testStudent2, grading.AverageOverall, 88, 1)
	first.SubjectID = ""
	second := averageRow(testStudentID, grading.AverageOverall, 82, 2)
	second.SubjectID = ""
	repo := &fakeAverageRepo{rows: []grading.GradeAverage{
		second,
		first,
		averageRow(testStudentID, grading.AverageSemester, 79, 2),
	}}
	handler := NewGetClassRankingHandler(repo, newMemoryAverageCache(), nil)

	result, err := handler.Handle(context.Background(), GetClassRankingQuery{
		ClassID:      testClassID,
		Semester:     1,
		AcademicYear: testYear,
	})
	require.NoError(t, err)

	assert.Equal(t, string(grading.AverageOverall), result.AverageType)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, testStudent2, result.Entries[0].StudentID)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, testStudentID, result.Entries[1].StudentID)
	assert.Equal(t, 2, result.Entries[1].Rank)
}

func TestGetClassRanking_InvalidQuery(t *testing.T) {
	handler := NewGetClassRankingHandler(&fakeAverageRepo{}, nil, nil)

	_, err := handler.Handle(context.Background(), GetClassRankingQuery{
		ClassID:      testClassID,
		AcademicYear: "bad-year",
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// SEMESTER CONFIG
// ─────────────────────────────────────────────────────────────────────────────

type fakeConfigRepo struct {
	configs map[string]schedule.SemesterConfig
	calls   int
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: make(map[string]schedule.SemesterConfig)}
}

func configKey(teacherID shared.TeacherID, year shared.AcademicYear, examCode string) string {
	return string(teacherID) + "|" + string(year) + "|" + examCode
}

func (r *fakeConfigRepo) Save(_ context.Context, cfg *schedule.SemesterConfig) error {
	r.configs[configKey(cfg.TeacherID, cfg.AcademicYear, cfg.SemesterExamCode)] = *cfg
	return nil
}

func (r *fakeConfigRepo) Find(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*schedule.SemesterConfig, error) {
	r.calls++
	cfg, ok := r.configs[configKey(teacherID, year, examCode)]
	if !ok {
		return nil, shared.ErrConfigNotFound
	}
	return &cfg, nil
}

func (r *fakeConfigRepo) ListByYear(_ context.Context, year shared.AcademicYear) ([]schedule.SemesterConfig, error) {
	var out []schedule.SemesterConfig
	for _, cfg := range r.configs {
		if cfg.AcademicYear == year {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (r *fakeConfigRepo) Delete(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) error {
	delete(r.configs, configKey(teacherID, year, examCode))
	return nil
}

// memoryConfigCache is a map-backed ConfigCache.
type memoryConfigCache struct {
	configs map[string]schedule.SemesterConfig
}

func newMemoryConfigCache() *memoryConfigCache {
	return &memoryConfigCache{configs: make(map[string]schedule.SemesterConfig)}
}

func (c *memoryConfigCache) Get(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*schedule.SemesterConfig, bool) {
	cfg, ok := c.configs[configKey(teacherID, year, examCode)]
	if !ok {
		return nil, false
	}
	return &cfg, true
}

func (c *memoryConfigCache) Put(_ context.Context, cfg *schedule.SemesterConfig) {
	c.configs[configKey(cfg.TeacherID, cfg.AcademicYear, cfg.SemesterExamCode)] = *cfg
}

func (c *memoryConfigCache) Evict(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) {
	delete(c.configs, configKey(teacherID, year, examCode))
}

func seedConfigs(repo *fakeConfigRepo) {
	repo.configs[configKey("", testYear, "SEMESTER_EXAM_1")] = schedule.SemesterConfig{
		ID:               "default-config",
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
		ExamSchedule: []schedule.ExamSlot{
			{AssessmentCode: "MONTHLY_EXAM_1", DisplayOrder: 1},
			{AssessmentCode: "SEMESTER_EXAM_1", DisplayOrder: 2},
		},
	}
	repo.configs[configKey(testTeacherID, testYear, "SEMESTER_EXAM_1")] = schedule.SemesterConfig{
		ID:               "teacher-config",
		TeacherID:        testTeacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
		ExamSchedule: []schedule.ExamSlot{
			{AssessmentCode: "MONTHLY_EXAM_1", DisplayOrder: 1},
			{AssessmentCode: "MONTHLY_EXAM_2", DisplayOrder: 2},
			{AssessmentCode: "SEMESTER_EXAM_1", DisplayOrder: 3},
		},
	}
}

func TestGetSemesterConfig_TeacherOverride(t *testing.T) {
	repo := newFakeConfigRepo()
	seedConfigs(repo)
	handler := NewGetSemesterConfigHandler(repo, newMemoryConfigCache(), nil)

	result, err := handler.Handle(context.Background(), GetSemesterConfigQuery{
		TeacherID:        testTeacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher-config", result.ID)
	assert.False(t, result.IsDefault)
	assert.Len(t, result.ExamSchedule, 3)
}

func TestGetSemesterConfig_FallsBackToDefault(t *testing.T) {
	repo := newFakeConfigRepo()
	seedConfigs(repo)
	delete(repo.configs, configKey(testTeacherID, testYear, "SEMESTER_EXAM_1"))
	cache := newMemoryConfigCache()
	handler := NewGetSemesterConfigHandler(repo, cache, nil)
	ctx := context.Background()

	q := GetSemesterConfigQuery{
		TeacherID:        testTeacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
	}

	result, err := handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "default-config", result.ID)
	assert.True(t, result.IsDefault)

	// The fallback is cached under the default tuple, never the
	// teacher's, so a later teacher config is not shadowed.
	_, ok := cache.configs[configKey(testTeacherID, testYear, "SEMESTER_EXAM_1")]
	assert.False(t, ok)
	_, ok = cache.configs[configKey("", testYear, "SEMESTER_EXAM_1")]
	assert.True(t, ok)
}

func TestGetSemesterConfig_NotFound(t *testing.T) {
	handler := NewGetSemesterConfigHandler(newFakeConfigRepo(), nil, nil)

	_, err := handler.Handle(context.Background(), GetSemesterConfigQuery{
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, shared.CodeConfigNotFound, shared.Code(err))
}

func TestGetSemesterConfig_ListByYear(t *testing.T) {
	repo := newFakeConfigRepo()
	seedConfigs(repo)
	handler := NewGetSemesterConfigHandler(repo, nil, nil)

	configs, err := handler.ListByYear(context.Background(), testYear)
	require.NoError(t, err)
	assert.Len(t, configs, 2)
}
