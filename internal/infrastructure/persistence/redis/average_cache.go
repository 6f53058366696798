// Package redis implements the Redis caching layer of the grade engine.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
	"github.com/schoolhub/grade-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// AVERAGE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// AverageCacheOptions tunes the cache adapter.
type AverageCacheOptions struct {
	// StudentAverageTTL bounds per-student average entries.
	StudentAverageTTL time.Duration

	// RankingTTL bounds class and subject ranking entries.
	RankingTTL time.Duration

	// OperationTimeout caps every single Redis call.
	OperationTimeout time.Duration
}

// DefaultAverageCacheOptions returns the standard TTLs.
func DefaultAverageCacheOptions() AverageCacheOptions {
	return AverageCacheOptions{
		StudentAverageTTL: TTLStudentAverage,
		RankingTTL:        TTLRanking,
		OperationTimeout:  500 * time.Millisecond,
	}
}

// AverageCache implements grading.AverageCache on Redis. Every failure is
// absorbed: a broken Redis turns into a 100% miss rate, never an error on
// the request path. A circuit breaker keeps a dead Redis from adding
// latency to every read.
type AverageCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	opts    AverageCacheOptions
	logger  *slog.Logger
}

var _ grading.AverageCache = (*AverageCache)(nil)

// NewAverageCache creates a new AverageCache.
func NewAverageCache(cache *Cache, opts AverageCacheOptions, logger *slog.Logger) *AverageCache {
	if opts.StudentAverageTTL <= 0 {
		opts.StudentAverageTTL = TTLStudentAverage
	}
	if opts.RankingTTL <= 0 {
		opts.RankingTTL = TTLRanking
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	ac := &AverageCache{
		cache:  cache,
		opts:   opts,
		logger: logger.With(slog.String("component", "average_cache")),
	}
	ac.breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("cache circuit state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return ac
}

// ─────────────────────────────────────────────────────────────────────────────
// Student averages
// ─────────────────────────────────────────────────────────────────────────────

// GetStudentAverages returns one student's cached rows, or false on a miss.
func (c *AverageCache) GetStudentAverages(ctx context.Context, studentID shared.StudentID, year shared.AcademicYear) ([]grading.GradeAverage, bool) {
	key := StudentAverageKey(string(studentID), string(year))

	var avgs []grading.GradeAverage
	if !c.get(ctx, key, &avgs) {
		return nil, false
	}
	return avgs, true
}

// PutStudentAverages caches one student's rows, best effort.
func (c *AverageCache) PutStudentAverages(ctx context.Context, studentID shared.StudentID, year shared.AcademicYear, avgs []grading.GradeAverage) {
	key := StudentAverageKey(string(studentID), string(year))
	c.put(ctx, key, avgs, c.opts.StudentAverageTTL)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rankings
// ─────────────────────────────────────────────────────────────────────────────

// GetRanking returns a cached cohort ranking, or false on a miss.
func (c *AverageCache) GetRanking(ctx context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) ([]grading.GradeAverage, bool) {
	key := c.rankingKey(classID, subjectID, semester, year, avgType)

	var avgs []grading.GradeAverage
	if !c.get(ctx, key, &avgs) {
		return nil, false
	}
	return avgs, true
}

// PutRanking caches a cohort ranking, best effort.
func (c *AverageCache) PutRanking(ctx context.Context, classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType, avgs []grading.GradeAverage) {
	key := c.rankingKey(classID, subjectID, semester, year, avgType)
	c.put(ctx, key, avgs, c.opts.RankingTTL)
}

func (c *AverageCache) rankingKey(classID shared.ClassID, subjectID shared.SubjectID, semester shared.Semester, year shared.AcademicYear, avgType grading.AverageType) string {
	if subjectID.IsOverall() {
		return ClassRankingKey(string(classID), string(year), string(avgType), int(semester))
	}
	return SubjectRankingKey(string(classID), string(subjectID), string(year), string(avgType), int(semester))
}

// ─────────────────────────────────────────────────────────────────────────────
// Eviction
// ─────────────────────────────────────────────────────────────────────────────

// EvictStudent drops every cached average of one student. Runs even when
// recomputation failed, so stale entries never outlive their source data.
func (c *AverageCache) EvictStudent(ctx context.Context, studentID shared.StudentID) {
	c.evict(ctx, StudentAveragePattern(string(studentID)))
}

// EvictClass drops every cached ranking of one class.
func (c *AverageCache) EvictClass(ctx context.Context, classID shared.ClassID) {
	c.evict(ctx, ClassRankingPattern(string(classID)))
	c.evict(ctx, SubjectRankingPattern(string(classID)))
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

func (c *AverageCache) get(ctx context.Context, key string, dest interface{}) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OperationTimeout)
	defer cancel()

	err := c.breaker.Execute(opCtx, func(ctx context.Context) error {
		return c.cache.Get(ctx, key, dest)
	})
	if err == nil {
		return true
	}

	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache get failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return false
}

func (c *AverageCache) put(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OperationTimeout)
	defer cancel()

	err := c.breaker.Execute(opCtx, func(ctx context.Context) error {
		return c.cache.Set(ctx, key, value, ttl)
	})
	if err != nil {
		c.logger.Warn("cache put failed, dropping entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (c *AverageCache) evict(ctx context.Context, pattern string) {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OperationTimeout)
	defer cancel()

	err := c.breaker.Execute(opCtx, func(ctx context.Context) error {
		return c.cache.DeleteByPattern(ctx, pattern)
	})
	if err != nil {
		c.logger.Warn("cache eviction failed",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()),
		)
	}
}
