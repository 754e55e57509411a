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
// SYNC POOL COMMAND
// Sweeps the fixed map pool for every registered participant and records any
// best-score improvements. Scores are monotonic, so the sweep is retry-safe.
// ══════════════════════════════════════════════════════════════════════════════

// BeatmapScore is a player's best result on one map as reported by the source.
type BeatmapScore struct {
	Score int64
	SetAt time.Time
}

// BeatmapScoreSource fetches per-map best scores from the osu! API.
type BeatmapScoreSource interface {
	// GetUserBeatmapScore fetches a user's best score on a map.
	// Returns shared.ErrNotFound when the user has no score on the map.
	GetUserBeatmapScore(ctx context.Context, userID shared.OsuUserID, mapID int64) (*BeatmapScore, error)
}

// SyncPoolCommand triggers one pool sweep.
type SyncPoolCommand struct{}

// SyncPoolResult contains the result of one sweep.
type SyncPoolResult struct {
	// MapsSwept is the number of pool maps checked.
	MapsSwept int

	// PlayersSwept is the number of participants checked.
	PlayersSwept int

	// Improvements is the number of recorded best-score improvements.
	Improvements int

	// FailedFetches is the number of failed score lookups.
	FailedFetches int

	// Duration is the total sweep duration.
	Duration time.Duration
}

// SyncPoolHandler handles the SyncPoolCommand.
type SyncPoolHandler struct {
	poolRepo        pool.Repository
	participantRepo tournament.ParticipantRepository
	scoreSource     BeatmapScoreSource
	logger          *slog.Logger
}

// NewSyncPoolHandler creates a new SyncPoolHandler.
func NewSyncPoolHandler(
	poolRepo pool.Repository,
	participantRepo tournament.ParticipantRepository,
	scoreSource BeatmapScoreSource,
	logger *slog.Logger,
) *SyncPoolHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncPoolHandler{
		poolRepo:        poolRepo,
		participantRepo: participantRepo,
		scoreSource:     scoreSource,
		logger:          logger,
	}
}

// Handle executes the sweep. Lookups run serially per user so one sweep never
// bursts the upstream rate limit; a failed lookup skips that (user, map) pair.
func (h *SyncPoolHandler) Handle(ctx context.Context, _ SyncPoolCommand) (*SyncPoolResult, error) {
	startedAt := time.Now()
	result := &SyncPoolResult{}

	maps, err := h.poolRepo.FindMaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync_pool: load map pool: %w", err)
	}
	participants, err := h.participantRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync_pool: load participants: %w", err)
	}
	result.MapsSwept = len(maps)
	result.PlayersSwept = len(participants)

	for _, p := range participants {
		for _, m := range maps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			improved, err := h.syncOne(ctx, p, m)
			if err != nil {
				result.FailedFetches++
				h.logger.Warn("pool score lookup failed",
					"user_id", p.UserID.Int64(),
					"map_id", m.ID,
					"error", err,
				)
				continue
			}
			if improved {
				result.Improvements++
			}
		}
	}

	result.Duration = time.Since(startedAt)
	return result, nil
}

// syncOne records one (user, map) best score if it improved.
func (h *SyncPoolHandler) syncOne(ctx context.Context, p *tournament.Participant, m *pool.Map) (bool, error) {
	best, err := h.scoreSource.GetUserBeatmapScore(ctx, p.UserID, m.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			// No score on the map yet; nothing to record.
			return false, nil
		}
		return false, err
	}

	score := &pool.Score{
		UserID:   p.UserID,
		Nickname: p.Nickname,
		MapID:    m.ID,
		Best:     best.Score,
		SetAt:    best.SetAt.UTC(),
	}
	if err := h.poolRepo.SaveScore(ctx, score); err != nil {
		return false, shared.WrapError("pool", "Record", shared.ErrPersistence, "save score", err)
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADD POOL MAP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AddPoolMapCommand adds a beatmap to the fixed pool.
type AddPoolMapCommand struct {
	// MapID is the osu! beatmap id.
	MapID int64

	// Title is the display title.
	Title string
}

// Validate validates the command.
func (c AddPoolMapCommand) Validate() error {
	if c.MapID <= 0 {
		return fmt.Errorf("add_pool_map: %w", shared.ErrInvalidID)
	}
	if c.Title == "" {
		return fmt.Errorf("add_pool_map: title: %w", shared.ErrEmptyValue)
	}
	return nil
}

// AddPoolMapHandler handles the AddPoolMapCommand.
type AddPoolMapHandler struct {
	poolRepo pool.Repository
	logger   *slog.Logger
}

// NewAddPoolMapHandler creates a new AddPoolMapHandler.
func NewAddPoolMapHandler(poolRepo pool.Repository, logger *slog.Logger) *AddPoolMapHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddPoolMapHandler{poolRepo: poolRepo, logger: logger}
}

// Handle upserts the map.
func (h *AddPoolMapHandler) Handle(ctx context.Context, cmd AddPoolMapCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	m := &pool.Map{ID: cmd.MapID, Title: cmd.Title, AddedAt: time.Now().UTC()}
	if err := h.poolRepo.SaveMap(ctx, m); err != nil {
		return shared.WrapError("pool", "AddMap", shared.ErrPersistence, "save map", err)
	}
	h.logger.Info("pool map added", "map_id", m.ID, "title", m.Title)
	return nil
}
