// Package main is the entry point for the library circulation worker.
//
// The worker runs the background jobs:
// - Overdue sweep: flips active loans past their due date to overdue
// - Statistics refresh: warms the circulation statistics cache
//
// It shares the persistence layer with the API server but exposes no HTTP
// surface. Multiple worker instances coordinate through a Redis lock so the
// sweep runs on one instance at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/schoolhub/library-service/config"
	"github.com/schoolhub/library-service/internal/application/command"
	"github.com/schoolhub/library-service/internal/application/query"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/infrastructure/messaging"
	"github.com/schoolhub/library-service/internal/infrastructure/persistence/postgres"
	"github.com/schoolhub/library-service/internal/infrastructure/persistence/redis"
	"github.com/schoolhub/library-service/internal/infrastructure/scheduler"
	"github.com/schoolhub/library-service/internal/infrastructure/scheduler/jobs"
	"github.com/schoolhub/library-service/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

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
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Scheduler.Enabled {
		return errors.New("SCHEDULER_ENABLED is false, nothing to run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupSlog(cfg)
	log.Info("starting library circulation worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

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

	// The worker also migrates so it never runs against a stale schema.
	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional: no lock means unguarded sweep, no warm cache)
	// ─────────────────────────────────────────────────────────────────────────
	redisCache := connectRedis(cfg, log)
	if redisCache != nil {
		defer redisCache.Close()
	}

	var (
		loanCache loan.Cache
		locker    jobs.Locker
	)
	if redisCache != nil {
		breaker := redis.NewCacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		})
		loanCache = redis.NewLoanCache(redisCache, breaker)
		locker = redis.NewDistributedLock(redisCache)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	loanRepo := postgres.NewLoanRepository(dbConn)
	sweepHandler := command.NewSweepOverdueHandler(loanRepo, loanCache, eventBus)
	statsHandler := query.NewLoanStatisticsHandler(loanRepo, loanCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER AND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        log,
		Timezone:      cfg.App.Location,
		EnableMetrics: true,
	})

	sweepConfig := jobs.DefaultSweepOverdueConfig()
	sweepConfig.Timeout = cfg.Scheduler.JobTimeout
	sweepJob := jobs.NewSweepOverdueJob(sweepHandler, locker, log, sweepConfig)
	if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SweepOverdueInterval)); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	if len(cfg.Scheduler.RefreshStatsSchoolIDs) > 0 {
		refreshSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.RefreshStatsCron)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_STATS_CRON: %w", err)
		}

		refreshConfig := jobs.DefaultRefreshStatisticsConfig()
		refreshConfig.SchoolIDs = cfg.Scheduler.RefreshStatsSchoolIDs
		refreshConfig.TopN = cfg.Scheduler.StatisticsTopN
		refreshJob := jobs.NewRefreshStatisticsJob(statsHandler, log, refreshConfig)
		if err := sched.Register(refreshJob, refreshSchedule); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}
		log.Info("statistics refresh scheduled", "cron", refreshSchedule.String())
	} else {
		log.Info("statistics refresh disabled, no schools configured")
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// First sweep immediately on boot so a worker that was down for a while
	// does not wait a full interval to catch up.
	if result, err := sched.RunNow(ctx, sweepJob.Name()); err != nil {
		log.Warn("initial sweep failed", "error", err)
	} else {
		log.Info("initial sweep completed", "duration", result.Duration.String())
	}

	log.Info("library circulation worker is running",
		"sweep_interval", cfg.Scheduler.SweepOverdueInterval.String(),
		"jobs", len(sched.ListJobs()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupSlog configures the process-wide structured logger.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

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

// connectRedis establishes the Redis connection, or returns nil when Redis
// is disabled or unreachable. The worker degrades without Redis: the sweep
// runs unguarded and statistics are computed cold.
func connectRedis(cfg *config.Config, log *slog.Logger) *redis.Cache {
	if cfg.Redis.Disabled {
		log.Info("redis disabled")
		return nil
	}

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

	if cfg.Redis.URL != "" {
		applyRedisURL(&redisCfg, cfg.Redis.URL)
	}

	log.Info("connecting to Redis...", "addr", redisCfg.Addr())
	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		log.Warn("failed to connect to Redis, continuing without it", "error", err)
		return nil
	}

	log.Info("redis connection established")
	return cache
}

// applyRedisURL overrides host, port, password, and DB from a redis:// URL.
func applyRedisURL(cfg *redis.Config, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	if u.Hostname() != "" {
		cfg.Host = u.Hostname()
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		cfg.Port = p
	}
	if pass, ok := u.User.Password(); ok {
		cfg.Password = pass
	}
	if len(u.Path) > 1 {
		if db, err := strconv.Atoi(u.Path[1:]); err == nil {
			cfg.DB = db
		}
	}
}
