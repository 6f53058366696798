package schedule

import (
	"context"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// Resolver resolves the effective semester config for a teacher, falling
// back to the system default when the teacher carries no override.
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver over the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the teacher's config for (year, examCode) when one
// exists, otherwise the default config. When neither exists it fails with
// shared.ErrConfigNotFound.
func (r *Resolver) Resolve(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*SemesterConfig, error) {
	if !teacherID.IsDefault() {
		cfg, err := r.repo.Find(ctx, teacherID, year, examCode)
		if err == nil {
			return cfg, nil
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
	}

	cfg, err := r.repo.Find(ctx, "", year, examCode)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrConfigNotFound
		}
		return nil, err
	}
	return cfg, nil
}
