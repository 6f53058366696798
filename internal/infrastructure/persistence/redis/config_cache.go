package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
	"github.com/schoolhub/grade-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ConfigCache implements schedule.ConfigCache on Redis with the same
// failure posture as AverageCache: absorb everything, report misses.
type ConfigCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

var _ schedule.ConfigCache = (*ConfigCache)(nil)

// NewConfigCache creates a new ConfigCache.
func NewConfigCache(cache *Cache, ttl, timeout time.Duration, logger *slog.Logger) *ConfigCache {
	if ttl <= 0 {
		ttl = TTLConfig
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &ConfigCache{
		cache:   cache,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "config_cache")),
	}
	cc.breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("cache circuit state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return cc
}

// Get returns the cached config for the exact tuple, or false on a miss.
func (c *ConfigCache) Get(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) (*schedule.SemesterConfig, bool) {
	key := ConfigKey(string(teacherID), string(year), examCode)

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var cfg schedule.SemesterConfig
	err := c.breaker.Execute(opCtx, func(ctx context.Context) error {
		return c.cache.Get(ctx, key, &cfg)
	})
	if err == nil {
		return &cfg, true
	}

	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache get failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return nil, false
}

// Put caches the config under its tuple, best effort.
func (c *ConfigCache) Put(ctx context.Context, cfg *schedule.SemesterConfig) {
	key := ConfigKey(string(cfg.TeacherID), string(cfg.AcademicYear), cfg.SemesterExamCode)

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.breaker.Execute(opCtx, func(ctx context.Context) error {
		return c.cache.Set(ctx, key, cfg, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache put failed, dropping entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Evict drops the cached config for the exact tuple.
func (c *ConfigCache) Evict(ctx context.Context, teacherID shared.TeacherID, year shared.AcademicYear, examCode string) {
	key := ConfigKey(string(teacherID), string(year), examCode)

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.breaker.Execute(opCtx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, key)
	})
	if err != nil {
		c.logger.Warn("cache eviction failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
