// Package main is the entry point for the grade engine HTTP server.
//
// The server owns the full grading pipeline:
// - Recording and correcting raw assessment scores
// - Recomputing monthly and semester averages on every mutation
// - Ranking class cohorts and serving leaderboard-style reads
// - Managing teacher and default semester exam configurations
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/schoolhub/grade-engine/config"
	"github.com/schoolhub/grade-engine/internal/application/command"
	"github.com/schoolhub/grade-engine/internal/application/eventhandler"
	"github.com/schoolhub/grade-engine/internal/application/query"
	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
	"github.com/schoolhub/grade-engine/internal/infrastructure/messaging"
	"github.com/schoolhub/grade-engine/internal/infrastructure/persistence/postgres"
	"github.com/schoolhub/grade-engine/internal/infrastructure/persistence/redis"
	httpapi "github.com/schoolhub/grade-engine/internal/interface/http"
	"github.com/schoolhub/grade-engine/internal/interface/http/handlers"
	"github.com/schoolhub/grade-engine/pkg/logger"
)

const version = "1.0.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	// .env is a development convenience; in production everything comes
	// from real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting grade engine",
		"version", version,
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional; the engine degrades to uncached reads without it)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache  *redis.Cache
		avgCache    grading.AverageCache = grading.NoopAverageCache{}
		configCache schedule.ConfigCache = schedule.NoopConfigCache{}
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			avgCache = redis.NewAverageCache(redisCache, redis.AverageCacheOptions{
				StudentAverageTTL: cfg.Cache.StudentAverageTTL,
				RankingTTL:        cfg.Cache.RankingTTL,
				OperationTimeout:  cfg.Cache.OperationTimeout,
			}, log)
			configCache = redis.NewConfigCache(redisCache, redis.TTLConfig, cfg.Cache.OperationTimeout, log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	entryRepo := postgres.NewEntryRepository(dbConn)
	avgRepo := postgres.NewAverageRepository(dbConn)
	typeRepo := postgres.NewAssessmentTypeRepository(dbConn)
	configRepo := postgres.NewConfigRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = cfg.EventBus.AsyncMode
	eventBusConfig.WorkerPoolSize = cfg.EventBus.WorkerPoolSize
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	auditLogger := eventhandler.NewAuditLogger(log)
	if err := auditLogger.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register audit logger: %w", err)
	}
	publisher := messaging.NewReliablePublisher(eventBus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. DOMAIN SERVICES & APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	calculator, err := grading.NewCalculator(cfg.Grading.DefaultMonthlyWeight, cfg.Grading.DefaultSemesterWeight)
	if err != nil {
		return fmt.Errorf("invalid grading weights: %w", err)
	}
	rankingPolicy := grading.PolicyByName(cfg.Grading.RankingPolicy)
	resolver := schedule.NewResolver(configRepo)

	recordGradeHandler := command.NewRecordGradeHandler(
		entryRepo, avgRepo, typeRepo, resolver,
		calculator, rankingPolicy, avgCache, publisher, log,
	)
	saveConfigHandler := command.NewSaveConfigHandler(
		configRepo, typeRepo, configCache, publisher,
		cfg.Grading.MinMonthlyExams, cfg.Grading.MaxMonthlyExams, log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpLogger := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.AdminKeyHash = cfg.Admin.APIKeyHash

	server := httpapi.NewServer(serverConfig, httpapi.Dependencies{
		RecordGradeHandler:       recordGradeHandler,
		SaveConfigHandler:        saveConfigHandler,
		GetStudentAverageHandler: query.NewGetStudentAverageHandler(avgRepo, avgCache, log),
		GetClassRankingHandler:   query.NewGetClassRankingHandler(avgRepo, avgCache, log),
		GetSemesterConfigHandler: query.NewGetSemesterConfigHandler(configRepo, configCache, log),
		CacheEvictor:             &cacheEvictor{averages: avgCache, configs: configCache},
		Logger:                   httpLogger,
		HealthChecker:            healthChecker,
	})

	serverErr := server.StartAsync()
	log.Info("grade engine is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// cacheEvictor adapts the domain caches to the admin surface.
type cacheEvictor struct {
	averages grading.AverageCache
	configs  schedule.ConfigCache
}

func (e *cacheEvictor) EvictStudentAverages(ctx context.Context, studentID string) {
	e.averages.EvictStudent(ctx, shared.StudentID(studentID))
}

func (e *cacheEvictor) EvictClassRankings(ctx context.Context, classID string) {
	e.averages.EvictClass(ctx, shared.ClassID(classID))
}

func (e *cacheEvictor) EvictConfig(ctx context.Context, teacherID, academicYear, semesterExamCode string) {
	e.configs.Evict(ctx, shared.TeacherID(teacherID), shared.AcademicYear(academicYear), semesterExamCode)
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
