// Package jobs contains implementations of scheduled jobs for PP Arena.
// Each job is a thin wrapper that binds an application handler to the
// scheduler's Job interface and logs a run summary.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLeaderboardJob refreshes the live standings from the osu! API.
// This is the hot path: it runs every few minutes while a tournament is open.
type RefreshLeaderboardJob struct {
	handler *command.RefreshLeaderboardHandler
	logger  *slog.Logger
	config  RefreshLeaderboardConfig
}

// RefreshLeaderboardConfig contains configuration for the refresh job.
type RefreshLeaderboardConfig struct {
	// Concurrency is the number of participants to refresh in parallel.
	Concurrency int

	// Timeout is the maximum duration for one refresh pass.
	Timeout time.Duration
}

// DefaultRefreshLeaderboardConfig returns sensible defaults.
func DefaultRefreshLeaderboardConfig() RefreshLeaderboardConfig {
	return RefreshLeaderboardConfig{
		Concurrency: 4,
		Timeout:     5 * time.Minute,
	}
}

// NewRefreshLeaderboardJob creates a new refresh job.
func NewRefreshLeaderboardJob(handler *command.RefreshLeaderboardHandler, logger *slog.Logger, config RefreshLeaderboardConfig) *RefreshLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &RefreshLeaderboardJob{
		handler: handler,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *RefreshLeaderboardJob) Name() string {
	return "refresh_leaderboard"
}

// Description returns a human-readable description.
func (j *RefreshLeaderboardJob) Description() string {
	return "Refreshes live standings from the osu! API"
}

// Run executes one refresh pass.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.handler.Handle(ctx, command.RefreshLeaderboardCommand{
		Concurrency: j.config.Concurrency,
	})
	if err != nil {
		return fmt.Errorf("refresh_leaderboard: %w", err)
	}

	j.logger.Info("leaderboard refreshed",
		"participants", result.TotalParticipants,
		"updated", result.UpdatedCount,
		"repositioned", result.RepositionedCount,
		"failed", result.FailedCount,
		"duration", result.Duration.String(),
	)
	return nil
}
