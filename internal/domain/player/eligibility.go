package player

import (
	"context"
	"log/slog"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY FILTER - anti-abuse win qualification
// ══════════════════════════════════════════════════════════════════════════════

// EligibilityConfig holds the anti-abuse thresholds a historical participant
// must meet to be credited with a tournament win.
type EligibilityConfig struct {
	// MinRatingStart is the rating floor at period start.
	MinRatingStart float64

	// MinPlayCount is the play-count floor. Filters out fresh or farmed
	// accounts that gained rating suspiciously fast.
	MinPlayCount int
}

// DefaultEligibilityConfig returns the thresholds used in production.
func DefaultEligibilityConfig() EligibilityConfig {
	return EligibilityConfig{
		MinRatingStart: 4000,
		MinPlayCount:   30000,
	}
}

// PlayCountSource re-fetches a live play count for entries recorded before
// play counts were stored. Implemented by the osu! API client.
type PlayCountSource interface {
	GetPlayCount(ctx context.Context, userID shared.OsuUserID) (int, error)
}

// Contender is the view of a snapshot entry the filter judges.
type Contender struct {
	UserID      shared.OsuUserID
	Nickname    shared.Nickname
	Position    shared.Position
	RatingStart float64
	PlayCount   int
}

// EligibilityFilter decides which historical participants qualify as
// legitimate win contenders. One filter instance spans one reconciliation
// run: live play-count re-fetches are memoized per user id for the run, so
// the same account is never fetched twice.
type EligibilityFilter struct {
	config EligibilityConfig
	source PlayCountSource
	logger *slog.Logger

	// Memoization of live re-fetches, keyed by user id. A failed fetch is
	// cached as 0 so it is not retried within the run.
	fetched map[shared.OsuUserID]int

	// suspectedBanned collects accounts whose live re-fetch failed
	// (deleted/restricted account, most likely).
	suspectedBanned map[shared.OsuUserID]bool
}

// NewEligibilityFilter creates a filter for one reconciliation run.
func NewEligibilityFilter(config EligibilityConfig, source PlayCountSource, logger *slog.Logger) *EligibilityFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EligibilityFilter{
		config:          config,
		source:          source,
		logger:          logger,
		fetched:         make(map[shared.OsuUserID]int),
		suspectedBanned: make(map[shared.OsuUserID]bool),
	}
}

// Qualified reports whether the contender meets the rating and play-count
// floors. A missing play count triggers a live re-fetch when the entry has a
// positive starting rating and a usable user id; a failed re-fetch counts as
// play-count 0, which disqualifies.
func (f *EligibilityFilter) Qualified(ctx context.Context, c Contender) bool {
	if c.RatingStart < f.config.MinRatingStart {
		return false
	}

	playCount := c.PlayCount
	if playCount <= 0 && c.RatingStart > 0 && c.UserID.IsValid() {
		playCount = f.livePlayCount(ctx, c.UserID)
	}

	return playCount >= f.config.MinPlayCount
}

// Winner returns the first qualified contender in position order, or false
// when no participant qualifies (the tournament then has no winner).
// The input must already be sorted by position ascending.
func (f *EligibilityFilter) Winner(ctx context.Context, contenders []Contender) (Contender, bool) {
	for _, c := range contenders {
		if f.Qualified(ctx, c) {
			return c, true
		}
	}
	return Contender{}, false
}

// SuspectedBanned returns the user ids whose live re-fetch failed during
// this run, for observability and the profile flag.
func (f *EligibilityFilter) SuspectedBanned() []shared.OsuUserID {
	ids := make([]shared.OsuUserID, 0, len(f.suspectedBanned))
	for id := range f.suspectedBanned {
		ids = append(ids, id)
	}
	return ids
}

// livePlayCount performs the memoized fallback fetch.
func (f *EligibilityFilter) livePlayCount(ctx context.Context, userID shared.OsuUserID) int {
	if count, ok := f.fetched[userID]; ok {
		return count
	}

	count, err := f.source.GetPlayCount(ctx, userID)
	if err != nil {
		f.logger.Warn("play-count re-fetch failed, treating account as suspected banned",
			"user_id", userID.Int64(),
			"error", err,
		)
		f.fetched[userID] = 0
		f.suspectedBanned[userID] = true
		return 0
	}

	f.fetched[userID] = count
	return count
}
