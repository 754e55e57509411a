// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the live tournament.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// UserStats is the live profile data fetched from the rating source.
type UserStats struct {
	UserID    shared.OsuUserID
	Nickname  shared.Nickname
	AvatarURL string
	PP        shared.PP
	PlayCount int
}

// RatingSource fetches live player data from the osu! API.
type RatingSource interface {
	// GetUserStats fetches current stats for one user.
	GetUserStats(ctx context.Context, userID shared.OsuUserID) (*UserStats, error)
}

// LeaderboardCache invalidates and primes the cached current standings.
type LeaderboardCache interface {
	// Invalidate drops the cached standings after a write.
	Invalidate(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER PARTICIPANT COMMAND
// Adds a player to the currently open tournament, capturing their PP as the
// starting rating for the week.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterParticipantCommand contains the data needed to register a player.
type RegisterParticipantCommand struct {
	// UserID is the osu! user ID to register.
	UserID shared.OsuUserID
}

// Validate validates the command.
func (c RegisterParticipantCommand) Validate() error {
	if !c.UserID.IsValid() {
		return fmt.Errorf("register_participant: %w", shared.ErrInvalidOsuUserID)
	}
	return nil
}

// RegisterParticipantResult contains the result of a registration.
type RegisterParticipantResult struct {
	// UserID is the registered osu! user ID.
	UserID shared.OsuUserID

	// Nickname is the nickname captured at registration.
	Nickname shared.Nickname

	// RatingStart is the PP captured at registration.
	RatingStart shared.PP

	// Position is the initial position within the live standings.
	Position shared.Position

	// RegisteredAt is when the registration was recorded.
	RegisteredAt time.Time
}

// RegisterParticipantHandler handles the RegisterParticipantCommand.
type RegisterParticipantHandler struct {
	participantRepo tournament.ParticipantRepository
	ratingSource    RatingSource
	cache           LeaderboardCache
	logger          *slog.Logger
}

// NewRegisterParticipantHandler creates a new RegisterParticipantHandler.
func NewRegisterParticipantHandler(
	participantRepo tournament.ParticipantRepository,
	ratingSource RatingSource,
	cache LeaderboardCache,
	logger *slog.Logger,
) *RegisterParticipantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterParticipantHandler{
		participantRepo: participantRepo,
		ratingSource:    ratingSource,
		cache:           cache,
		logger:          logger,
	}
}

// Handle executes the registration.
func (h *RegisterParticipantHandler) Handle(ctx context.Context, cmd RegisterParticipantCommand) (*RegisterParticipantResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Duplicate registrations are rejected before the external fetch.
	_, err := h.participantRepo.FindByUserID(ctx, cmd.UserID)
	switch {
	case err == nil:
		return nil, shared.ErrAlreadyParticipates
	case errors.Is(err, shared.ErrNotFound):
		// Expected: not registered yet.
	default:
		return nil, fmt.Errorf("register_participant: lookup failed: %w", err)
	}

	stats, err := h.ratingSource.GetUserStats(ctx, cmd.UserID)
	if err != nil {
		return nil, shared.WrapError("tournament", "Register", shared.ErrExternalFetch, "fetch user stats", err)
	}

	now := time.Now().UTC()
	participant, err := tournament.NewParticipant(stats.UserID, stats.Nickname, stats.AvatarURL, stats.PP, now)
	if err != nil {
		return nil, err
	}

	if err := h.participantRepo.Save(ctx, participant); err != nil {
		return nil, fmt.Errorf("register_participant: save failed: %w", err)
	}

	// Reassign positions across the whole standings. A zero-point newcomer
	// still needs a dense rank behind everyone with points.
	position, err := h.reorder(ctx, participant.UserID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("leaderboard cache invalidation failed", "error", err)
		}
	}

	h.logger.Info("participant registered",
		"user_id", participant.UserID.Int64(),
		"nickname", participant.Nickname.String(),
		"rating_start", participant.RatingStart.Float64(),
		"position", position.Int(),
	)

	return &RegisterParticipantResult{
		UserID:       participant.UserID,
		Nickname:     participant.Nickname,
		RatingStart:  participant.RatingStart,
		Position:     position,
		RegisteredAt: participant.RegisteredAt,
	}, nil
}

// reorder recomputes positions for the full standings, persists only the
// changed rows and returns the position of the given user.
func (h *RegisterParticipantHandler) reorder(ctx context.Context, userID shared.OsuUserID) (shared.Position, error) {
	all, err := h.participantRepo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("register_participant: load standings: %w", err)
	}

	changed := tournament.Reorder(all)
	if len(changed) > 0 {
		if err := h.participantRepo.SaveAll(ctx, changed); err != nil {
			return 0, fmt.Errorf("register_participant: save positions: %w", err)
		}
	}

	for _, p := range all {
		if p.UserID == userID {
			return p.Position, nil
		}
	}
	return 0, nil
}
