// Package main is the entry point for the library circulation API server.
//
// The API serves the REST surface: cataloging books, checking books out and
// back in, renewing loans, and circulation statistics. Background work (the
// overdue sweep, statistics warm-up) runs in the separate worker binary.
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
	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
	"github.com/schoolhub/library-service/internal/infrastructure/messaging"
	"github.com/schoolhub/library-service/internal/infrastructure/persistence/postgres"
	"github.com/schoolhub/library-service/internal/infrastructure/persistence/redis"
	httpapi "github.com/schoolhub/library-service/internal/interface/http"
	"github.com/schoolhub/library-service/pkg/circuitbreaker"
	"github.com/schoolhub/library-service/pkg/logger"
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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupSlog(cfg)
	appLog := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.Observability.LogLevel),
	})

	log.Info("starting library circulation API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
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

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional, service runs uncached without it)
	// ─────────────────────────────────────────────────────────────────────────
	redisCache := connectRedis(cfg, log)
	if redisCache != nil {
		defer redisCache.Close()
	}

	var (
		loanCache  *redis.LoanCache
		bookCache  *redis.BookCache
		statsCache *redis.LoanCache
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
		bookCache = redis.NewBookCache(redisCache, breaker)
		statsCache = loanCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// Audit trail: every domain event gets a log line.
	_ = eventBus.SubscribeAll(func(ctx context.Context, event shared.Event) error {
		log.Info("domain event",
			"type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. REPOSITORIES AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	bookRepo := postgres.NewBookRepository(dbConn)
	memberRepo := postgres.NewMemberRepository(dbConn)
	ruleRepo := postgres.NewRentalRuleRepository(dbConn)
	loanRepo := postgres.NewLoanRepository(dbConn)

	deps := httpapi.Dependencies{
		CheckoutBookHandler: command.NewCheckoutBookHandler(
			loanRepo, bookRepo, memberRepo, ruleRepo,
			cacheOrNil(bookCache), loanCacheOrNil(statsCache), eventBus,
		),
		ReturnBookHandler: command.NewReturnBookHandler(
			loanRepo, ruleRepo, loanCacheOrNil(loanCache), cacheOrNil(bookCache), eventBus,
		),
		RenewLoanHandler: command.NewRenewLoanHandler(
			loanRepo, ruleRepo, loanCacheOrNil(loanCache), eventBus,
		),
		CatalogBookHandler: command.NewCatalogBookHandler(bookRepo, eventBus),

		GetLoanHandler:        query.NewGetLoanHandler(loanRepo, loanCacheOrNil(loanCache)),
		ListLoansHandler:      query.NewListLoansHandler(loanRepo),
		LoanStatisticsHandler: query.NewLoanStatisticsHandler(loanRepo, loanCacheOrNil(statsCache)),
		GetBookHandler:        query.NewGetBookHandler(bookRepo, cacheOrNil(bookCache)),
		ListBooksHandler:      query.NewListBooksHandler(bookRepo),

		Logger:        appLog,
		HealthChecker: &healthChecker{db: dbConn, cache: redisCache},
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpapi.NewServer(serverConfig, deps)
	errCh := server.StartAsync()

	log.Info("library circulation API is running",
		"address", server.Address(),
		"caching", redisCache != nil,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK
// ══════════════════════════════════════════════════════════════════════════════

// healthChecker reports database and cache health for the /health probes.
// A missing or unreachable cache degrades the status message but not
// readiness, since the service runs uncached.
type healthChecker struct {
	db    *postgres.Connection
	cache *redis.Cache
}

func (h *healthChecker) Check(ctx context.Context) httpapi.HealthStatus {
	status := httpapi.HealthStatus{
		Healthy: true,
		Ready:   true,
		Checks:  make(map[string]string),
	}

	if dbHealth, err := h.db.Health(ctx); err != nil || !dbHealth.Healthy {
		status.Healthy = false
		status.Ready = false
		status.Checks["database"] = "unhealthy"
		if err != nil {
			status.Message = err.Error()
		} else {
			status.Message = dbHealth.Error
		}
	} else {
		status.Checks["database"] = "ok"
	}

	if h.cache == nil {
		status.Checks["cache"] = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		status.Checks["cache"] = "unhealthy"
	} else {
		status.Checks["cache"] = "ok"
	}

	return status
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
// is disabled or unreachable. Connection failure is not fatal: every cache
// consumer tolerates a nil cache and falls through to the database.
func connectRedis(cfg *config.Config, log *slog.Logger) *redis.Cache {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, running uncached")
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
		log.Warn("failed to connect to Redis, caching disabled", "error", err)
		return nil
	}

	log.Info("redis connection established")
	return cache
}

// cacheOrNil converts a possibly-nil concrete cache into an interface value
// that stays nil when the cache is absent, so handler nil checks keep working.
func cacheOrNil(c *redis.BookCache) book.Cache {
	if c == nil {
		return nil
	}
	return c
}

func loanCacheOrNil(c *redis.LoanCache) loan.Cache {
	if c == nil {
		return nil
	}
	return c
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
