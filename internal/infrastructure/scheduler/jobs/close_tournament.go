package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/application/command"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE TOURNAMENT JOB
// ══════════════════════════════════════════════════════════════════════════════

// PeriodBoundary resolves the close instant of the period a wall-clock
// moment belongs to. *scheduler.WeeklySchedule satisfies it.
type PeriodBoundary interface {
	Previous(t time.Time) time.Time
}

// CloseTournamentJob closes the open tournament at the weekly period
// boundary: it freezes the standings into a history snapshot and resets
// the live table for the next period.
type CloseTournamentJob struct {
	handler  *command.CloseTournamentHandler
	boundary PeriodBoundary
	logger   *slog.Logger
}

// NewCloseTournamentJob creates a new close job. The boundary (usually the
// weekly schedule the job runs on) stamps the snapshot: a delayed or retried
// run closes the period at its scheduled instant, not at the wall clock.
func NewCloseTournamentJob(handler *command.CloseTournamentHandler, boundary PeriodBoundary, logger *slog.Logger) *CloseTournamentJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloseTournamentJob{
		handler:  handler,
		boundary: boundary,
		logger:   logger,
	}
}

// Name returns the job name.
func (j *CloseTournamentJob) Name() string {
	return "close_tournament"
}

// Description returns a human-readable description.
func (j *CloseTournamentJob) Description() string {
	return "Closes the weekly tournament and snapshots the standings"
}

// Run executes the close. A period with no participants closes as a no-op.
func (j *CloseTournamentJob) Run(ctx context.Context) error {
	closedAt := time.Now().UTC()
	if j.boundary != nil {
		closedAt = j.boundary.Previous(closedAt)
	}
	result, err := j.handler.Handle(ctx, command.CloseTournamentCommand{
		ClosedAt: closedAt,
	})
	if err != nil {
		if errors.Is(err, shared.ErrEmptyTournament) {
			j.logger.Info("tournament close skipped: no participants")
			return nil
		}
		return fmt.Errorf("close_tournament: %w", err)
	}

	j.logger.Info("tournament closed",
		"snapshot_id", result.SnapshotID,
		"participants", result.ParticipantCount,
		"closed_at", result.ClosedAt.Format(time.RFC3339),
	)
	return nil
}
