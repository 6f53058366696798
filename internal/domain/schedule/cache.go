package schedule

import (
	"context"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ConfigCache is a read-through cache over resolved semester configs.
// Implementations absorb every cache failure: Get reports a miss, Put and
// Evict drop the operation, and none of them returns an error.
type ConfigCache interface {
	// Get returns the cached config for the exact tuple, with false on miss.
	Get(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*SemesterConfig, bool)

	// Put stores the config under its tuple.
	Put(ctx context.Context, cfg *SemesterConfig)

	// Evict drops the cached config for the exact tuple.
	Evict(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string)
}

// NoopConfigCache satisfies ConfigCache without caching anything.
// Used when Redis is disabled.
type NoopConfigCache struct{}

func (NoopConfigCache) Get(context.Context, shared.TeacherID, shared.AcademicYear, string) (*SemesterConfig, bool) {
	return nil, false
}

func (NoopConfigCache) Put(context.Context, *SemesterConfig) {}

func (NoopConfigCache) Evict(context.Context, shared.TeacherID, shared.AcademicYear, string) {}
