package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC POOL JOB
// ══════════════════════════════════════════════════════════════════════════════

// SyncPoolJob sweeps the fixed map pool for best-score improvements.
// Score lookups are one request per (participant, map) pair, so the sweep
// runs far less often than the leaderboard refresh.
type SyncPoolJob struct {
	handler *command.SyncPoolHandler
	logger  *slog.Logger
	timeout time.Duration
}

// NewSyncPoolJob creates a new pool sweep job.
func NewSyncPoolJob(handler *command.SyncPoolHandler, logger *slog.Logger, timeout time.Duration) *SyncPoolJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SyncPoolJob{
		handler: handler,
		logger:  logger,
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *SyncPoolJob) Name() string {
	return "sync_pool"
}

// Description returns a human-readable description.
func (j *SyncPoolJob) Description() string {
	return "Sweeps the map pool for best-score improvements"
}

// Run executes one pool sweep.
func (j *SyncPoolJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.SyncPoolCommand{})
	if err != nil {
		return fmt.Errorf("sync_pool: %w", err)
	}

	j.logger.Info("pool swept",
		"maps", result.MapsSwept,
		"players", result.PlayersSwept,
		"improvements", result.Improvements,
		"failed_fetches", result.FailedFetches,
		"duration", result.Duration.String(),
	)
	return nil
}
