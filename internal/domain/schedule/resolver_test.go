package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// memoryRepo is an in-memory Repository double for resolver tests.
type memoryRepo struct {
	configs map[string]*SemesterConfig
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{configs: make(map[string]*SemesterConfig)}
}

func repoKey(teacherID shared.TeacherID, year shared.AcademicYear, examCode string) string {
	return teacherID.String() + "|" + year.String() + "|" + examCode
}

func (m *memoryRepo) Save(_ context.Context, cfg *SemesterConfig) error {
	m.configs[repoKey(cfg.TeacherID, cfg.AcademicYear, cfg.SemesterExamCode)] = cfg
	return nil
}

func (m *memoryRepo) Find(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*SemesterConfig, error) {
	cfg, ok := m.configs[repoKey(teacherID, year, examCode)]
	if !ok {
		return nil, shared.ErrConfigNotFound
	}
	return cfg, nil
}

func (m *memoryRepo) ListByYear(_ context.Context, year shared.AcademicYear) ([]SemesterConfig, error) {
	var out []SemesterConfig
	for _, cfg := range m.configs {
		if cfg.AcademicYear == year {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (m *memoryRepo) Delete(_ context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) error {
	delete(m.configs, repoKey(teacherID, year, examCode))
	return nil
}

const teacherA shared.TeacherID = "5f0c2a1e-0000-4000-8000-0000000000aa"

func TestResolve_PrefersTeacherConfig(t *testing.T) {
	repo := newMemoryRepo()
	defaultCfg := &SemesterConfig{
		AcademicYear:     "2025/2026",
		SemesterExamCode: "sem1",
		ExamSchedule:     []ExamSlot{{AssessmentCode: "monthly-1", DisplayOrder: 1}},
	}
	teacherCfg := &SemesterConfig{
		TeacherID:        teacherA,
		AcademicYear:     "2025/2026",
		SemesterExamCode: "sem1",
		ExamSchedule: []ExamSlot{
			{AssessmentCode: "monthly-1", DisplayOrder: 1},
			{AssessmentCode: "monthly-2", DisplayOrder: 2},
		},
	}
	require.NoError(t, repo.Save(context.Background(), defaultCfg))
	require.NoError(t, repo.Save(context.Background(), teacherCfg))

	resolved, err := NewResolver(repo).Resolve(context.Background(), teacherA, "2025/2026", "sem1")
	require.NoError(t, err)
	assert.Equal(t, teacherA, resolved.TeacherID)
	assert.Len(t, resolved.ExamSchedule, 2)
}

func TestResolve_FallsBackToDefault(t *testing.T) {
	repo := newMemoryRepo()
	defaultCfg := &SemesterConfig{
		AcademicYear:     "2025/2026",
		SemesterExamCode: "sem1",
		ExamSchedule: []ExamSlot{
			{AssessmentCode: "monthly-1", Title: "Monthly 1", DisplayOrder: 1},
			{AssessmentCode: "monthly-2", Title: "Monthly 2", DisplayOrder: 2},
		},
	}
	require.NoError(t, repo.Save(context.Background(), defaultCfg))

	resolved, err := NewResolver(repo).Resolve(context.Background(), teacherA, "2025/2026", "sem1")
	require.NoError(t, err)
	assert.True(t, resolved.IsDefault())
	// The default schedule arrives unchanged.
	assert.Equal(t, defaultCfg.ExamSchedule, resolved.ExamSchedule)
}

func TestResolve_NoConfigAnywhere(t *testing.T) {
	repo := newMemoryRepo()

	_, err := NewResolver(repo).Resolve(context.Background(), teacherA, "2025/2026", "sem1")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConfigNotFound)
	assert.Equal(t, shared.CodeConfigNotFound, shared.Code(err))
}

func TestResolve_DeletedTeacherConfigFallsBack(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &SemesterConfig{
		AcademicYear: "2025/2026", SemesterExamCode: "sem1",
		ExamSchedule: []ExamSlot{{AssessmentCode: "monthly-1", DisplayOrder: 1}},
	}))
	require.NoError(t, repo.Save(ctx, &SemesterConfig{
		TeacherID: teacherA, AcademicYear: "2025/2026", SemesterExamCode: "sem1",
		ExamSchedule: []ExamSlot{{AssessmentCode: "monthly-2", DisplayOrder: 1}},
	}))

	require.NoError(t, repo.Delete(ctx, teacherA, "2025/2026", "sem1"))

	resolved, err := NewResolver(repo).Resolve(ctx, teacherA, "2025/2026", "sem1")
	require.NoError(t, err)
	assert.True(t, resolved.IsDefault())

	// The default row survives teacher deletions.
	_, err = repo.Find(ctx, "", "2025/2026", "sem1")
	assert.NoError(t, err)
}
