// Package main is the entry point for the PP Arena worker.
//
// The worker runs the recurring jobs that keep the competition moving:
// - refresh_leaderboard: re-fetch participant PP and recompute standings
// - sync_pool: sweep best scores on the map pool
// - close_tournament: snapshot and reset the week at the close boundary
// - reconcile_history: annotate snapshots with Elo and player aggregates
//
// The worker and the API server share the database; the worker never serves
// HTTP. Running exactly one worker instance is assumed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pp-arena/pp-arena/config"
	"github.com/pp-arena/pp-arena/internal/application/command"
	"github.com/pp-arena/pp-arena/internal/application/reconciler"
	"github.com/pp-arena/pp-arena/internal/infrastructure/external/osu"
	"github.com/pp-arena/pp-arena/internal/infrastructure/persistence/postgres"
	"github.com/pp-arena/pp-arena/internal/infrastructure/persistence/redis"
	"github.com/pp-arena/pp-arena/internal/infrastructure/scheduler"
	"github.com/pp-arena/pp-arena/internal/infrastructure/scheduler/jobs"
)

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
	log := setupLogger(cfg)
	log.Info("starting PP Arena worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to do (set SCHEDULER_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := connectDatabase(ctx, cfg)
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

	// The worker also migrates so it can run standalone
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var commandCache command.LeaderboardCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err := redis.NewCache(redisCacheConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, cache invalidation disabled", "error", err)
		} else {
			defer redisCache.Close()
			commandCache = redis.NewStandingsCache(redisCache, log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES + OSU! CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	participantRepo := postgres.NewParticipantRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)
	playerRepo := postgres.NewPlayerRepository(dbConn)
	poolRepo := postgres.NewPoolRepository(dbConn)

	osuClient := osu.NewClient(osuClientConfig(cfg, log))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	refreshCmd := command.NewRefreshLeaderboardHandler(participantRepo, osuClient, commandCache, log)
	closeCmd := command.NewCloseTournamentHandler(participantRepo, historyRepo, poolRepo, osuClient, commandCache, log)
	syncPoolCmd := command.NewSyncPoolHandler(poolRepo, participantRepo, osuClient, log)

	rec := reconciler.New(historyRepo, playerRepo, osuClient, log, reconciler.DefaultConfig())

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER + JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	refreshJobCfg := jobs.DefaultRefreshLeaderboardConfig()
	refreshJobCfg.Concurrency = cfg.Scheduler.RefreshConcurrency
	refreshJobCfg.Timeout = cfg.Scheduler.JobTimeout

	closeSchedule := scheduler.NewWeeklySchedule(
		cfg.Scheduler.CloseWeekday,
		cfg.Scheduler.CloseHour,
		cfg.Scheduler.CloseMinute,
		cfg.App.Location,
	)

	registrations := []struct {
		job      scheduler.Job
		schedule scheduler.Schedule
	}{
		{jobs.NewRefreshLeaderboardJob(refreshCmd, log, refreshJobCfg), scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshInterval)},
		{jobs.NewSyncPoolJob(syncPoolCmd, log, cfg.Scheduler.JobTimeout), scheduler.NewIntervalSchedule(cfg.Scheduler.PoolSyncInterval)},
		{jobs.NewCloseTournamentJob(closeCmd, closeSchedule, log), closeSchedule},
		{jobs.NewReconcileHistoryJob(rec, log, cfg.Scheduler.JobTimeout), scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)},
	}

	for _, r := range registrations {
		if err := sched.Register(r.job, r.schedule); err != nil {
			return fmt.Errorf("failed to register job %q: %w", r.job.Name(), err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for _, info := range sched.ListJobs() {
		log.Info("job scheduled",
			"job", info.Name,
			"schedule", info.Schedule,
			"next_run", info.NextRun,
		)
	}

	log.Info("PP Arena worker is running",
		"close_boundary", closeSchedule.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...")
	if err := sched.Stop(); err != nil {
		log.Warn("scheduler did not stop cleanly", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	return postgres.NewConnection(ctx, pgCfg)
}

func redisCacheConfig(cfg *config.Config) redis.Config {
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
	return redisCfg
}

func osuClientConfig(cfg *config.Config, log *slog.Logger) osu.ClientConfig {
	osuCfg := osu.DefaultClientConfig(cfg.Osu.ClientID, cfg.Osu.ClientSecret)
	osuCfg.BaseURL = cfg.Osu.BaseURL
	osuCfg.TokenURL = cfg.Osu.TokenURL
	osuCfg.GameMode = cfg.Osu.GameMode
	osuCfg.Timeout = cfg.Osu.RequestTimeout
	osuCfg.RateLimiterConfig.RequestsPerSecond = float64(cfg.Osu.RateLimit) / 60.0
	osuCfg.RateLimiterConfig.BurstSize = cfg.Osu.RateLimitBurst
	osuCfg.CircuitBreakerConfig.FailureThreshold = cfg.Osu.CircuitBreakerThreshold
	osuCfg.CircuitBreakerConfig.Timeout = cfg.Osu.CircuitBreakerTimeout
	osuCfg.RetryConfig.MaxRetries = cfg.Osu.MaxRetries
	osuCfg.Logger = log
	osuCfg.Debug = cfg.App.Debug
	return osuCfg
}
