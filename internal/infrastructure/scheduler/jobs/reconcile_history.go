package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/application/reconciler"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE HISTORY JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileHistoryJob runs the history reconciliation sweep: it propagates
// ratings over unprocessed snapshots, credits winners and recomputes the
// all-time profiles. The sweep is idempotent, so running it while nothing
// is unprocessed is cheap.
type ReconcileHistoryJob struct {
	rec     *reconciler.Reconciler
	logger  *slog.Logger
	timeout time.Duration
}

// NewReconcileHistoryJob creates a new reconciliation job.
func NewReconcileHistoryJob(rec *reconciler.Reconciler, logger *slog.Logger, timeout time.Duration) *ReconcileHistoryJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ReconcileHistoryJob{
		rec:     rec,
		logger:  logger,
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *ReconcileHistoryJob) Name() string {
	return "reconcile_history"
}

// Description returns a human-readable description.
func (j *ReconcileHistoryJob) Description() string {
	return "Propagates ratings over unprocessed history snapshots"
}

// Run executes one reconciliation sweep over all players.
func (j *ReconcileHistoryJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	stats, err := j.rec.Run(ctx, nil)
	if err != nil {
		return fmt.Errorf("reconcile_history: %w", err)
	}

	if stats.SnapshotsProcessed == 0 && len(stats.Errors) == 0 {
		return nil
	}

	j.logger.Info("history reconciled",
		"snapshots_processed", stats.SnapshotsProcessed,
		"snapshots_skipped", stats.SnapshotsSkipped,
		"winners_credited", stats.WinnersCredited,
		"profiles_updated", stats.ProfilesUpdated,
		"suspected_banned", stats.SuspectedBanned,
		"errors", len(stats.Errors),
		"duration", stats.Duration.String(),
	)
	return nil
}
