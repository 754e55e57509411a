// Package main is the entry point for the PP Arena API server.
//
// The server exposes the public scoreboard API (live leaderboard, tournament
// history, all-time player stats, map pool standings) and the admin API
// (manual refresh/close/reconcile, pool management). Background jobs run in
// the separate worker binary; the server only serves reads and the few
// writes triggered by HTTP requests.
//
// Architecture follows Clean Architecture and DDD:
// - Domain: tournament, player and pool logic without external dependencies
// - Application: use case orchestration (Commands/Queries/Reconciler)
// - Infrastructure: PostgreSQL, Redis, osu! API client
// - Interface: REST API handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pp-arena/pp-arena/config"
	"github.com/pp-arena/pp-arena/internal/application/command"
	"github.com/pp-arena/pp-arena/internal/application/query"
	"github.com/pp-arena/pp-arena/internal/application/reconciler"
	"github.com/pp-arena/pp-arena/internal/infrastructure/external/osu"
	"github.com/pp-arena/pp-arena/internal/infrastructure/persistence/postgres"
	"github.com/pp-arena/pp-arena/internal/infrastructure/persistence/redis"
	httpserver "github.com/pp-arena/pp-arena/internal/interface/http"
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
	log.Info("starting PP Arena API server",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

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

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var standingsCache *redis.StandingsCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCache(redisCacheConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			standingsCache = redis.NewStandingsCache(redisCache, log)
			log.Info("Redis connection established")
		}
	}

	// The handlers take nil-able cache interfaces. A typed nil pointer would
	// defeat their nil checks, so only assign when Redis is actually up.
	var queryCache query.StandingsCache
	var commandCache command.LeaderboardCache
	if standingsCache != nil {
		queryCache = standingsCache
		commandCache = standingsCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	participantRepo := postgres.NewParticipantRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)
	playerRepo := postgres.NewPlayerRepository(dbConn)
	poolRepo := postgres.NewPoolRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. OSU! API CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	osuClient := osu.NewClient(osuClientConfig(cfg, log))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	registerCmd := command.NewRegisterParticipantHandler(participantRepo, osuClient, commandCache, log)
	refreshCmd := command.NewRefreshLeaderboardHandler(participantRepo, osuClient, commandCache, log)
	closeCmd := command.NewCloseTournamentHandler(participantRepo, historyRepo, poolRepo, osuClient, commandCache, log)
	addPoolMapCmd := command.NewAddPoolMapHandler(poolRepo, log)

	leaderboardQuery := query.NewGetLeaderboardHandler(participantRepo, queryCache)
	historyQuery := query.NewGetHistoryHandler(historyRepo)
	playerStatsQuery := query.NewGetPlayerStatsHandler(playerRepo)
	listPlayersQuery := query.NewListPlayersHandler(playerRepo)
	poolQuery := query.NewGetPoolHandler(poolRepo)

	rec := reconciler.New(historyRepo, playerRepo, osuClient, log, reconciler.DefaultConfig())

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpServerConfig(cfg)

	healthCheckers := map[string]httpserver.HealthChecker{
		"postgres": dbConn,
	}
	if redisCache != nil {
		healthCheckers["redis"] = redisCache
	}

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		GetLeaderboard:      leaderboardQuery,
		GetHistory:          historyQuery,
		GetPlayerStats:      playerStatsQuery,
		ListPlayers:         listPlayersQuery,
		GetPool:             poolQuery,
		RegisterParticipant: registerCmd,
		RefreshLeaderboard:  refreshCmd,
		CloseTournament:     closeCmd,
		AddPoolMap:          addPoolMapCmd,
		Reconciler:          rec,
		HealthCheckers:      healthCheckers,
		Logger:              log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 10. START + GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", server.Address())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("PP Arena API server is running", "address", server.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Observability.LogLevel)}
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

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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

func httpServerConfig(cfg *config.Config) httpserver.Config {
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.Auth.AdminUsername = cfg.HTTP.AdminUsername
	httpCfg.Auth.AdminPasswordHash = cfg.HTTP.AdminPasswordHash
	httpCfg.Auth.JWTSecret = cfg.HTTP.JWTSecret
	httpCfg.Auth.TokenTTL = cfg.HTTP.TokenTTL
	return httpCfg
}
