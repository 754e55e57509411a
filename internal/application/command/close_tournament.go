package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/pool"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE TOURNAMENT COMMAND
// Freezes the live standings into a durable history snapshot, then clears the
// live table for the next period. The cumulative map-pool standings are frozen
// alongside under the same close timestamp, so both rating tracks gain one
// snapshot per period. Snapshot IDs are derived from track and close time, and
// every snapshot write is confirmed before any participant row is deleted: a
// crash between the steps loses nothing, and a retried close writes the same
// IDs again instead of duplicating the period.
// ══════════════════════════════════════════════════════════════════════════════

// CloseTournamentCommand closes the currently open tournament.
type CloseTournamentCommand struct {
	// ClosedAt overrides the snapshot timestamp. Zero means now.
	ClosedAt time.Time
}

// CloseTournamentResult contains the result of a close.
type CloseTournamentResult struct {
	// SnapshotID is the ID of the written history snapshot.
	SnapshotID string

	// ParticipantCount is the number of frozen weekly entries.
	ParticipantCount int

	// PoolEntryCount is the number of frozen pool-standing entries.
	// Zero when nobody has a pool score yet.
	PoolEntryCount int

	// ClosedAt is the snapshot timestamp.
	ClosedAt time.Time
}

// CloseTournamentHandler handles the CloseTournamentCommand.
type CloseTournamentHandler struct {
	participantRepo tournament.ParticipantRepository
	historyRepo     tournament.HistoryRepository
	poolRepo        pool.Repository
	ratingSource    RatingSource
	cache           LeaderboardCache
	logger          *slog.Logger
}

// NewCloseTournamentHandler creates a new CloseTournamentHandler.
func NewCloseTournamentHandler(
	participantRepo tournament.ParticipantRepository,
	historyRepo tournament.HistoryRepository,
	poolRepo pool.Repository,
	ratingSource RatingSource,
	cache LeaderboardCache,
	logger *slog.Logger,
) *CloseTournamentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloseTournamentHandler{
		participantRepo: participantRepo,
		historyRepo:     historyRepo,
		poolRepo:        poolRepo,
		ratingSource:    ratingSource,
		cache:           cache,
		logger:          logger,
	}
}

// Handle executes the close.
func (h *CloseTournamentHandler) Handle(ctx context.Context, cmd CloseTournamentCommand) (*CloseTournamentResult, error) {
	participants, err := h.participantRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("close_tournament: load participants: %w", err)
	}
	if len(participants) == 0 {
		return nil, shared.ErrEmptyTournament
	}

	closedAt := cmd.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	// Play counts are captured into the snapshot so the reconciler can judge
	// eligibility later without depending on the account still existing.
	playCounts := h.fetchPlayCounts(ctx, participants)

	snapshot := tournament.NewSnapshot(participants, playCounts, closedAt)

	// Durable copies first. Only after both snapshot writes are confirmed is
	// the live table cleared.
	if err := h.historyRepo.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, shared.WrapError("tournament", "Close", shared.ErrPersistence, "save snapshot", err)
	}
	poolEntries, err := h.snapshotPool(ctx, closedAt)
	if err != nil {
		return nil, err
	}
	if err := h.participantRepo.DeleteAll(ctx); err != nil {
		return nil, shared.WrapError("tournament", "Close", shared.ErrPersistence, "clear live standings", err)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("leaderboard cache invalidation failed", "error", err)
		}
	}

	h.logger.Info("tournament closed",
		"snapshot_id", snapshot.ID,
		"participants", len(snapshot.Entries),
		"pool_entries", poolEntries,
		"closed_at", closedAt.Format(time.RFC3339),
	)

	return &CloseTournamentResult{
		SnapshotID:       snapshot.ID,
		ParticipantCount: len(snapshot.Entries),
		PoolEntryCount:   poolEntries,
		ClosedAt:         closedAt,
	}, nil
}

// snapshotPool freezes the cumulative pool standings into a pool-track
// snapshot, feeding the history the pool rating propagation replays. A pool
// nobody has scored on yet produces no snapshot.
func (h *CloseTournamentHandler) snapshotPool(ctx context.Context, closedAt time.Time) (int, error) {
	scores, err := h.poolRepo.FindScores(ctx)
	if err != nil {
		return 0, shared.WrapError("tournament", "Close", shared.ErrPersistence, "load pool scores", err)
	}
	if len(scores) == 0 {
		return 0, nil
	}

	rows := pool.BuildStandings(scores)
	entries := make([]*tournament.SnapshotEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &tournament.SnapshotEntry{
			Position: row.Position,
			UserID:   row.UserID,
			Nickname: row.Nickname,
			Score:    int(row.Total),
		})
	}

	snapshot := tournament.NewPoolSnapshot(entries, closedAt)
	if err := h.historyRepo.SaveSnapshot(ctx, snapshot); err != nil {
		return 0, shared.WrapError("tournament", "Close", shared.ErrPersistence, "save pool snapshot", err)
	}
	return len(entries), nil
}

// fetchPlayCounts fetches the play count of each participant at close time.
// A failed fetch leaves the count at zero; the reconciler re-fetches lazily
// when it needs the number for eligibility.
func (h *CloseTournamentHandler) fetchPlayCounts(ctx context.Context, participants []*tournament.Participant) map[shared.OsuUserID]int {
	counts := make(map[shared.OsuUserID]int, len(participants))
	for _, p := range participants {
		stats, err := h.ratingSource.GetUserStats(ctx, p.UserID)
		if err != nil {
			h.logger.Warn("play count fetch failed at close",
				"user_id", p.UserID.Int64(),
				"error", err,
			)
			continue
		}
		counts[p.UserID] = stats.PlayCount
	}
	return counts
}
