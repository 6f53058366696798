package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

const (
	testStudentID = "5f0c2a1e-0000-4000-8000-000000000001"
	testStudent2  = "5f0c2a1e-0000-4000-8000-000000000002"
	testStudent3  = "5f0c2a1e-0000-4000-8000-000000000003"
	testClassID   = "5f0c2a1e-0000-4000-8000-0000000000c1"
	testSubjectID = "5f0c2a1e-0000-4000-8000-0000000000a1"
	testSubject2  = "5f0c2a1e-0000-4000-8000-0000000000a2"
	testTeacherID = "5f0c2a1e-0000-4000-8000-0000000000e1"
	testYear      = "2025/2026"
)

// ─────────────────────────────────────────────────────────────────────────────
// FAKES
// ─────────────────────────────────────────────────────────────────────────────

type fakeEntryRepo struct {
	mu      sync.Mutex
	entries map[string]grading.GradeEntry
	saveErr error
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]grading.GradeEntry)}
}

func (r *fakeEntryRepo) Save(_ context.Context, entry *grading.GradeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.entries[entry.ID] = *entry
	return nil
}

func (r *fakeEntryRepo) FindByID(_ context.Context, id string) (*grading.GradeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, shared.ErrEntryNotFound
	}
	return &entry, nil
}

func (r *fakeEntryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	return nil
}

func (r *fakeEntryRepo) ListForScope(_ context.Context, scope grading.EntryScope) ([]grading.GradeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []grading.GradeEntry
	for _, e := range r.entries {
		if e.StudentID == scope.StudentID && e.SubjectID == scope.SubjectID &&
			e.Semester == scope.Semester && e.AcademicYear == scope.AcademicYear {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type fakeAverageRepo struct {
	mu        sync.Mutex
	rows      map[string]grading.GradeAverage
	upsertErr error
}

func newFakeAverageRepo() *fakeAverageRepo {
	return &fakeAverageRepo{rows: make(map[string]grading.GradeAverage)}
}

func (r *fakeAverageRepo) put(avg grading.GradeAverage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[avg.Key().String()] = avg
}

func (r *fakeAverageRepo) Upsert(_ context.Context, avg *grading.GradeAverage) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.put(*avg)
	return nil
}

func (r *fakeAverageRepo) UpsertAll(_ context.Context, avgs []grading.GradeAverage) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	for _, avg := range avgs {
		r.put(avg)
	}
	return nil
}

func (r *fakeAverageRepo) Find(_ context.Context, key grading.AverageKey) (*grading.GradeAverage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key.String()]
	if !ok {
		return nil, shared.ErrAverageNotFound
	}
	return &row, nil
}

func (r *fakeAverageRepo) ListForClass(_ context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	r.mu.Lock()
	defer r.mu.Unlock()
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
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []grading.GradeAverage
	for _, row := range r.rows {
		if row.StudentID == studentID && row.AcademicYear == year {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeTypeRepo struct {
	types []grading.AssessmentType
}

func newFakeTypeRepo() *fakeTypeRepo {
	return &fakeTypeRepo{types: []grading.AssessmentType{
		{Code: "MONTHLY_EXAM_1", Category: grading.CategoryMonthly, GradeLevel: 7},
		{Code: "MONTHLY_EXAM_2", Category: grading.CategoryMonthly, GradeLevel: 7},
		{Code: "MONTHLY_EXAM_3", Category: grading.CategoryMonthly, GradeLevel: 7},
		{Code: "SEMESTER_EXAM_1", Category: grading.CategorySemester, GradeLevel: 7},
	}}
}

func (r *fakeTypeRepo) FindByCode(_ context.Context, code string) (*grading.AssessmentType, error) {
	for _, t := range r.types {
		if t.Code == code {
			return &t, nil
		}
	}
	return nil, shared.ErrAssessmentTypeNotFound
}

func (r *fakeTypeRepo) List(_ context.Context) ([]grading.AssessmentType, error) {
	return r.types, nil
}

type fakeConfigRepo struct {
	configs map[string]schedule.SemesterConfig
	saveErr error
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: make(map[string]schedule.SemesterConfig)}
}

func configKey(teacherID shared.TeacherID, year shared.AcademicYear, examCode string) string {
	return string(teacherID) + "|" + string(year) + "|" + examCode
}

func (r *fakeConfigRepo) Save(_ context.Context, cfg *schedule.SemesterConfig) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.configs[configKey(cfg.TeacherID, cfg.AcademicYear, cfg.SemesterExamCode)] = *cfg
	return nil
}

func (r *fakeConfigRepo) Find(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*schedule.SemesterConfig, error) {
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

// recordingAverageCache counts evictions so tests can assert that no
// stale derived data survives a mutation.
type recordingAverageCache struct {
	grading.NoopAverageCache
	mu               sync.Mutex
	studentEvictions []shared.StudentID
	classEvictions   []shared.ClassID
}

func (c *recordingAverageCache) EvictStudent(_ context.Context, id shared.StudentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.studentEvictions = append(c.studentEvictions, id)
}

func (c *recordingAverageCache) EvictClass(_ context.Context, id shared.ClassID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classEvictions = append(c.classEvictions, id)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// FIXTURE
// ─────────────────────────────────────────────────────────────────────────────

type gradeFixture struct {
	handler    *RecordGradeHandler
	entryRepo  *fakeEntryRepo
	avgRepo    *fakeAverageRepo
	configRepo *fakeConfigRepo
	cache      *recordingAverageCache
	publisher  *capturePublisher
}

func newGradeFixture(t *testing.T) *gradeFixture {
	t.Helper()

	entryRepo := newFakeEntryRepo()
	avgRepo := newFakeAverageRepo()
	configRepo := newFakeConfigRepo()
	cache := &recordingAverageCache{}
	publisher := &capturePublisher{}

	configRepo.configs[configKey("", testYear, "SEMESTER_EXAM_1")] = schedule.SemesterConfig{
		ID:               "default-config",
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
		ExamSchedule: []schedule.ExamSlot{
			{AssessmentCode: "MONTHLY_EXAM_1", DisplayOrder: 1},
			{AssessmentCode: "MONTHLY_EXAM_2", DisplayOrder: 2},
			{AssessmentCode: "SEMESTER_EXAM_1", DisplayOrder: 3},
		},
	}

	handler := NewRecordGradeHandler(
		entryRepo, avgRepo, newFakeTypeRepo(), schedule.NewResolver(configRepo),
		nil, nil, cache, publisher, nil,
	)

	return &gradeFixture{
		handler:    handler,
		entryRepo:  entryRepo,
		avgRepo:    avgRepo,
		configRepo: configRepo,
		cache:      cache,
		publisher:  publisher,
	}
}

func gradeCommand(code string, score float64) RecordGradeCommand {
	return RecordGradeCommand{
		StudentID:          testStudentID,
		ClassID:            testClassID,
		SubjectID:          testSubjectID,
		AssessmentTypeCode: code,
		Score:              score,
		MaxScore:           100,
		Semester:           1,
		AcademicYear:       testYear,
	}
}

func (f *gradeFixture) semesterRow(t *testing.T, studentID string) grading.GradeAverage {
	t.Helper()
	row, err := f.avgRepo.Find(context.Background(), grading.AverageKey{
		StudentID:    shared.StudentID(studentID),
		ClassID:      testClassID,
		SubjectID:    testSubjectID,
		Semester:     shared.FirstSemester,
		AcademicYear: testYear,
		AverageType:  grading.AverageSemester,
	})
	require.NoError(t, err)
	return *row
}

// ─────────────────────────────────────────────────────────────────────────────
// RECORD
// ─────────────────────────────────────────────────────────────────────────────

func TestRecordGrade_IncompleteScopeStoresEntryWithoutAverages(t *testing.T) {
	f := newGradeFixture(t)

	result, err := f.handler.Handle(context.Background(), gradeCommand("MONTHLY_EXAM_1", 80))
	require.NoError(t, err)

	assert.NotEmpty(t, result.EntryID)
	assert.False(t, result.Recomputed)
	assert.Empty(t, result.Refreshed)
	assert.Len(t, f.entryRepo.entries, 1)
	assert.Empty(t, f.avgRepo.rows)

	// Eviction happens even when no averages were written.
	assert.Equal(t, []shared.StudentID{testStudentID}, f.cache.studentEvictions)
	assert.Equal(t, []shared.ClassID{testClassID}, f.cache.classEvictions)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, shared.EventGradeEntered, f.publisher.events[0].EventType())
}

func TestRecordGrade_CompleteScopeRefreshesAverages(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_1", 80))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_2", 90))
	require.NoError(t, err)

	result, err := f.handler.Handle(ctx, gradeCommand("SEMESTER_EXAM_1", 70))
	require.NoError(t, err)

	assert.True(t, result.Recomputed)
	// Monthly, semester, overall and annual rows for a one-student cohort.
	require.Len(t, result.Refreshed, 4)

	monthly, err := f.avgRepo.Find(ctx, grading.AverageKey{
		StudentID:    testStudentID,
		ClassID:      testClassID,
		SubjectID:    testSubjectID,
		Semester:     shared.FirstSemester,
		AcademicYear: testYear,
		AverageType:  grading.AverageMonthly,
	})
	require.NoError(t, err)
	assert.InDelta(t, 85.0, monthly.AverageScore, 1e-9)
	assert.Equal(t, grading.GradeA, monthly.LetterGrade)

	// 85*0.6 + 70*0.4 = 79
	semester := f.semesterRow(t, testStudentID)
	assert.InDelta(t, 79.0, semester.AverageScore, 1e-9)
	assert.Equal(t, grading.GradeB, semester.LetterGrade)
	assert.Equal(t, 1, semester.ClassRank)
	assert.Equal(t, 1, semester.TotalStudents)

	// One-subject class, so the overall average mirrors the semester one.
	overall, err := f.avgRepo.Find(ctx, grading.AverageKey{
		StudentID:    testStudentID,
		ClassID:      testClassID,
		Semester:     shared.FirstSemester,
		AcademicYear: testYear,
		AverageType:  grading.AverageOverall,
	})
	require.NoError(t, err)
	assert.InDelta(t, 79.0, overall.AverageScore, 1e-9)
	assert.Equal(t, 1, overall.ClassRank)

	// Only one semester recorded, so the annual average equals it.
	annual, err := f.avgRepo.Find(ctx, grading.AverageKey{
		StudentID:    testStudentID,
		ClassID:      testClassID,
		SubjectID:    testSubjectID,
		Semester:     shared.SemesterNone,
		AcademicYear: testYear,
		AverageType:  grading.AverageAnnual,
	})
	require.NoError(t, err)
	assert.InDelta(t, 79.0, annual.AverageScore, 1e-9)

	// Mutation event plus one per refreshed row of this student.
	var calculated int
	for _, e := range result.Events {
		if e.EventType() == shared.EventAverageCalculated {
			calculated++
		}
	}
	assert.Equal(t, 4, calculated)
}

func TestRecordGrade_ReRanksCohort(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	for i, seed := range []struct {
		studentID string
		score     float64
	}{
		{testStudent2, 90},
		{testStudent3, 70},
	} {
		f.avgRepo.put(grading.GradeAverage{
			StudentID:    shared.StudentID(seed.studentID),
			ClassID:      testClassID,
			SubjectID:    testSubjectID,
			Semester:     shared.FirstSemester,
			AcademicYear: testYear,
			AverageType:  grading.AverageSemester,
			AverageScore: seed.score,
			LetterGrade:  grading.LetterGradeFor(seed.score),
			ClassRank:    i + 1,
		})
	}

	_, err := f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_1", 80))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_2", 90))
	require.NoError(t, err)
	result, err := f.handler.Handle(ctx, gradeCommand("SEMESTER_EXAM_1", 70))
	require.NoError(t, err)
	require.True(t, result.Recomputed)

	// Cohort is now 90, 79, 70.
	assert.Equal(t, 1, f.semesterRow(t, testStudent2).SubjectRank)
	assert.Equal(t, 2, f.semesterRow(t, testStudentID).SubjectRank)
	assert.Equal(t, 3, f.semesterRow(t, testStudent3).SubjectRank)
	assert.Equal(t, 3, f.semesterRow(t, testStudentID).TotalStudents)

	// With one subject in play the class ranking mirrors the subject one.
	assert.Equal(t, 1, f.semesterRow(t, testStudent2).ClassRank)
	assert.Equal(t, 2, f.semesterRow(t, testStudentID).ClassRank)
	assert.Equal(t, 3, f.semesterRow(t, testStudent3).ClassRank)
}

func TestRecordGrade_ClassRankSpansAllSubjects(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	// Student 2 dominates this subject but tanks the other one, so their
	// subject rank and class rank must diverge.
	for _, seed := range []struct {
		studentID string
		subjectID string
		score     float64
	}{
		{testStudent2, testSubjectID, 90},
		{testStudent2, testSubject2, 10},
		{testStudentID, testSubject2, 85},
	} {
		f.avgRepo.put(grading.GradeAverage{
			StudentID:    shared.StudentID(seed.studentID),
			ClassID:      testClassID,
			SubjectID:    shared.SubjectID(seed.subjectID),
			Semester:     shared.FirstSemester,
			AcademicYear: testYear,
			AverageType:  grading.AverageSemester,
			AverageScore: seed.score,
			LetterGrade:  grading.LetterGradeFor(seed.score),
		})
	}

	_, err := f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_1", 80))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_2", 90))
	require.NoError(t, err)
	result, err := f.handler.Handle(ctx, gradeCommand("SEMESTER_EXAM_1", 70))
	require.NoError(t, err)
	require.True(t, result.Recomputed)

	// Subject cohort: 90 beats 79. Overall: (79+85)/2 beats (90+10)/2.
	row := f.semesterRow(t, testStudentID)
	assert.Equal(t, 2, row.SubjectRank)
	assert.Equal(t, 1, row.ClassRank)
	assert.Equal(t, 1, f.semesterRow(t, testStudent2).SubjectRank)
	assert.Equal(t, 2, f.semesterRow(t, testStudent2).ClassRank)

	overall, err := f.avgRepo.Find(ctx, grading.AverageKey{
		StudentID:    testStudentID,
		ClassID:      testClassID,
		Semester:     shared.FirstSemester,
		AcademicYear: testYear,
		AverageType:  grading.AverageOverall,
	})
	require.NoError(t, err)
	assert.InDelta(t, 82.0, overall.AverageScore, 1e-9)
	assert.Equal(t, 1, overall.ClassRank)
	assert.Equal(t, 2, overall.TotalStudents)
}

func TestRecordGrade_ConcurrentCohortMutationsKeepEveryScore(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	students := []struct {
		id       string
		monthly1 float64
		monthly2 float64
		semester float64
		want     float64
	}{
		{testStudentID, 80, 90, 70, 79.0},
		{testStudent2, 90, 90, 90, 90.0},
		{testStudent3, 60, 70, 50, 59.0},
	}

	for _, s := range students {
		cmd := gradeCommand("MONTHLY_EXAM_1", s.monthly1)
		cmd.StudentID = s.id
		_, err := f.handler.Handle(ctx, cmd)
		require.NoError(t, err)

		cmd = gradeCommand("MONTHLY_EXAM_2", s.monthly2)
		cmd.StudentID = s.id
		_, err = f.handler.Handle(ctx, cmd)
		require.NoError(t, err)
	}

	// The semester exams land at the same time. Every recompute rewrites
	// the whole cohort, so without serialization one student's fresh row
	// can be overwritten by a rival's stale read.
	var wg sync.WaitGroup
	errs := make([]error, len(students))
	for i, s := range students {
		wg.Add(1)
		go func(i int, studentID string, score float64) {
			defer wg.Done()
			cmd := gradeCommand("SEMESTER_EXAM_1", score)
			cmd.StudentID = studentID
			_, err := f.handler.Handle(ctx, cmd)
			errs[i] = err
		}(i, s.id, s.semester)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, s := range students {
		assert.InDelta(t, s.want, f.semesterRow(t, s.id).AverageScore, 1e-9)
		assert.Equal(t, 3, f.semesterRow(t, s.id).TotalStudents)
	}
	assert.Equal(t, 1, f.semesterRow(t, testStudent2).SubjectRank)
	assert.Equal(t, 2, f.semesterRow(t, testStudentID).SubjectRank)
	assert.Equal(t, 3, f.semesterRow(t, testStudent3).SubjectRank)
	assert.Equal(t, 9, f.entryRepo.count())
}

func TestRecordGrade_UnknownAssessmentCode(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.handler.Handle(context.Background(), gradeCommand("POP_QUIZ", 80))
	require.Error(t, err)
	assert.Equal(t, shared.CodeInvalidScore, shared.Code(err))
	assert.Empty(t, f.entryRepo.entries)
	assert.Empty(t, f.publisher.events)
}

func TestRecordGrade_ScoreAboveMax(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.handler.Handle(context.Background(), gradeCommand("MONTHLY_EXAM_1", 110))
	require.Error(t, err)
	assert.Equal(t, shared.CodeScoreOutOfRange, shared.Code(err))
	assert.Empty(t, f.entryRepo.entries)
}

func TestRecordGrade_NegativeScore(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.handler.Handle(context.Background(), gradeCommand("MONTHLY_EXAM_1", -5))
	require.Error(t, err)
	assert.Equal(t, shared.CodeInvalidScore, shared.Code(err))
}

func TestRecordGrade_InvalidCommand(t *testing.T) {
	f := newGradeFixture(t)

	cmd := gradeCommand("MONTHLY_EXAM_1", 80)
	cmd.StudentID = "not-a-uuid"

	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, shared.CodeValidationError, shared.Code(err))
}

func TestRecordGrade_FailedRecomputeKeepsRowsAndEvictsCache(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_1", 80))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_2", 90))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, gradeCommand("SEMESTER_EXAM_1", 70))
	require.NoError(t, err)

	before := f.semesterRow(t, testStudentID)
	f.cache.studentEvictions = nil
	f.cache.classEvictions = nil

	// Correcting a score while the average store is down keeps the
	// correction, leaves the stale rows alone, and still drops the cache.
	f.avgRepo.upsertErr = errors.New("storage down")
	result, err := f.handler.Handle(ctx, gradeCommand("SEMESTER_EXAM_1", 95))
	require.NoError(t, err)

	assert.False(t, result.Recomputed)
	assert.Equal(t, before.AverageScore, f.semesterRow(t, testStudentID).AverageScore)
	assert.NotEmpty(t, f.cache.studentEvictions)
	assert.NotEmpty(t, f.cache.classEvictions)
}

func TestRecordGrade_TeacherConfigOverridesDefault(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	// The teacher's schedule has a single monthly exam, so the scope
	// completes after two entries instead of three.
	f.configRepo.configs[configKey(testTeacherID, testYear, "SEMESTER_EXAM_1")] = schedule.SemesterConfig{
		ID:               "teacher-config",
		TeacherID:        testTeacherID,
		AcademicYear:     testYear,
		SemesterExamCode: "SEMESTER_EXAM_1",
		ExamSchedule: []schedule.ExamSlot{
			{AssessmentCode: "MONTHLY_EXAM_1", DisplayOrder: 1},
			{AssessmentCode: "SEMESTER_EXAM_1", DisplayOrder: 2},
		},
	}

	cmd := gradeCommand("MONTHLY_EXAM_1", 80)
	cmd.TeacherID = testTeacherID
	_, err := f.handler.Handle(ctx, cmd)
	require.NoError(t, err)

	cmd = gradeCommand("SEMESTER_EXAM_1", 100)
	cmd.TeacherID = testTeacherID
	result, err := f.handler.Handle(ctx, cmd)
	require.NoError(t, err)

	assert.True(t, result.Recomputed)
	// 80*0.6 + 100*0.4 = 88
	assert.InDelta(t, 88.0, f.semesterRow(t, testStudentID).AverageScore, 1e-9)
}

// ─────────────────────────────────────────────────────────────────────────────
// DELETE
// ─────────────────────────────────────────────────────────────────────────────

func TestDeleteGrade_IncompleteScopeKeepsStoredAverages(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_1", 80))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, gradeCommand("MONTHLY_EXAM_2", 90))
	require.NoError(t, err)
	semesterResult, err := f.handler.Handle(ctx, gradeCommand("SEMESTER_EXAM_1", 70))
	require.NoError(t, err)

	before := f.semesterRow(t, testStudentID)
	f.cache.studentEvictions = nil

	result, err := f.handler.HandleDelete(ctx, DeleteGradeCommand{EntryID: semesterResult.EntryID})
	require.NoError(t, err)

	assert.False(t, result.Recomputed)
	assert.Len(t, f.entryRepo.entries, 2)
	assert.Equal(t, before.AverageScore, f.semesterRow(t, testStudentID).AverageScore)
	assert.NotEmpty(t, f.cache.studentEvictions)

	require.NotEmpty(t, result.Events)
	assert.Equal(t, shared.EventGradeDeleted, result.Events[0].EventType())
}

func TestDeleteGrade_NotFound(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.handler.HandleDelete(context.Background(), DeleteGradeCommand{EntryID: "missing"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteGrade_RequiresEntryID(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.handler.HandleDelete(context.Background(), DeleteGradeCommand{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
