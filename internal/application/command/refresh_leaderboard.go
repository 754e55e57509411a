package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD COMMAND
// Fetches live PP for every participant, recomputes points and positions, and
// persists only the rows that changed. Runs on a schedule and on admin demand.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLeaderboardCommand triggers a live standings refresh.
type RefreshLeaderboardCommand struct {
	// Concurrency controls how many participants to fetch in parallel.
	Concurrency int
}

// RefreshLeaderboardResult contains the result of one refresh pass.
type RefreshLeaderboardResult struct {
	// TotalParticipants is the count of participants processed.
	TotalParticipants int

	// UpdatedCount is the count of participants whose rating or points changed.
	UpdatedCount int

	// RepositionedCount is the count of participants whose position changed.
	RepositionedCount int

	// FailedCount is the count of participants whose fetch failed.
	FailedCount int

	// Errors contains fetch errors by user ID.
	Errors map[shared.OsuUserID]error

	// Duration is the total refresh duration.
	Duration time.Duration

	// StartedAt is when the refresh started.
	StartedAt time.Time
}

// RefreshLeaderboardHandler handles the RefreshLeaderboardCommand.
type RefreshLeaderboardHandler struct {
	participantRepo tournament.ParticipantRepository
	ratingSource    RatingSource
	cache           LeaderboardCache
	logger          *slog.Logger

	defaultConcurrency int
}

// NewRefreshLeaderboardHandler creates a new RefreshLeaderboardHandler.
func NewRefreshLeaderboardHandler(
	participantRepo tournament.ParticipantRepository,
	ratingSource RatingSource,
	cache LeaderboardCache,
	logger *slog.Logger,
) *RefreshLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshLeaderboardHandler{
		participantRepo:    participantRepo,
		ratingSource:       ratingSource,
		cache:              cache,
		logger:             logger,
		defaultConcurrency: 4,
	}
}

// Handle executes the refresh.
func (h *RefreshLeaderboardHandler) Handle(ctx context.Context, cmd RefreshLeaderboardCommand) (*RefreshLeaderboardResult, error) {
	result := &RefreshLeaderboardResult{
		Errors:    make(map[shared.OsuUserID]error),
		StartedAt: time.Now().UTC(),
	}

	participants, err := h.participantRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh_leaderboard: load participants: %w", err)
	}
	result.TotalParticipants = len(participants)
	if len(participants) == 0 {
		result.Duration = time.Since(result.StartedAt)
		return result, nil
	}

	concurrency := cmd.Concurrency
	if concurrency <= 0 {
		concurrency = h.defaultConcurrency
	}
	sem := make(chan struct{}, concurrency)

	type fetchItem struct {
		participant *tournament.Participant
		stats       *UserStats
		err         error
	}
	results := make(chan fetchItem, len(participants))

	for _, p := range participants {
		sem <- struct{}{} // Acquire semaphore

		go func(p *tournament.Participant) {
			defer func() { <-sem }() // Release semaphore

			stats, fetchErr := h.ratingSource.GetUserStats(ctx, p.UserID)
			results <- fetchItem{p, stats, fetchErr}
		}(p)
	}

	changed := make([]*tournament.Participant, 0, len(participants))
	for i := 0; i < len(participants); i++ {
		item := <-results
		if item.err != nil {
			// One bad fetch never fails the pass.
			result.FailedCount++
			result.Errors[item.participant.UserID] = item.err
			h.logger.Warn("participant refresh failed",
				"user_id", item.participant.UserID.Int64(),
				"nickname", item.participant.Nickname.String(),
				"error", item.err,
			)
			continue
		}
		if item.participant.ObserveRating(item.stats.PP) {
			changed = append(changed, item.participant)
		}
		// Renames propagate from the source of truth.
		if item.stats.Nickname.IsValid() && item.stats.Nickname != item.participant.Nickname {
			item.participant.Nickname = item.stats.Nickname
			changed = appendUnique(changed, item.participant)
		}
	}

	if len(changed) > 0 {
		if err := h.participantRepo.SaveAll(ctx, changed); err != nil {
			return nil, fmt.Errorf("refresh_leaderboard: save ratings: %w", err)
		}
		result.UpdatedCount = len(changed)
	}

	repositioned := tournament.Reorder(participants)
	if len(repositioned) > 0 {
		if err := h.participantRepo.SaveAll(ctx, repositioned); err != nil {
			return nil, fmt.Errorf("refresh_leaderboard: save positions: %w", err)
		}
		result.RepositionedCount = len(repositioned)
	}

	if h.cache != nil && (result.UpdatedCount > 0 || result.RepositionedCount > 0) {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("leaderboard cache invalidation failed", "error", err)
		}
	}

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

// appendUnique appends p unless it is already the last appended element.
// ObserveRating and a rename can both mark the same participant in one pass.
func appendUnique(list []*tournament.Participant, p *tournament.Participant) []*tournament.Participant {
	if len(list) > 0 && list[len(list)-1] == p {
		return list
	}
	return append(list, p)
}
