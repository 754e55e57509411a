// Package player contains the cross-tournament player model: all-time
// aggregate profiles, the pairwise Elo-like rating engine and the anti-abuse
// eligibility filter used to credit tournament wins.
package player

import (
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// Profile is the all-time standing of a player across every tournament,
// keyed by resolved identity (user id, nickname fallback for old entries).
// Created lazily the first time an identity is seen in any snapshot; mutated
// only by the history reconciliation; never deleted.
type Profile struct {
	// Key is the resolved identity, see shared.ResolvePlayerKey.
	Key shared.PlayerKey

	// UserID is the osu! id when known (zero for nickname-only profiles).
	UserID shared.OsuUserID

	// Nickname is the last seen nickname.
	Nickname shared.Nickname

	// Ratings holds the current Elo-like estimate per competition track.
	Ratings map[shared.Track]int

	// TotalParticipations counts snapshot appearances.
	TotalParticipations int

	// TotalWins counts tournaments where this player was the first
	// qualified participant in position order.
	TotalWins int

	// TotalPoints is the cumulative score over all snapshots.
	TotalPoints int

	// BestPosition is the best (minimum) position ever achieved, 0 if none.
	BestPosition shared.Position

	// SuspectedBanned is set when a live play-count re-fetch failed for this
	// player during eligibility checking. Observability only.
	SuspectedBanned bool

	// UpdatedAt is the last reconciliation touch.
	UpdatedAt time.Time
}

// NewProfile creates an empty profile with default ratings on every track.
func NewProfile(key shared.PlayerKey, userID shared.OsuUserID, nickname shared.Nickname) *Profile {
	ratings := make(map[shared.Track]int, 2)
	for _, track := range shared.AllTracks() {
		ratings[track] = DefaultRating
	}
	return &Profile{
		Key:      key,
		UserID:   userID,
		Nickname: nickname,
		Ratings:  ratings,
	}
}

// Rating returns the player's rating on a track, defaulting for unseen tracks.
func (p *Profile) Rating(track shared.Track) int {
	if r, ok := p.Ratings[track]; ok {
		return r
	}
	return DefaultRating
}

// RecordAppearance folds one snapshot appearance into the aggregates.
func (p *Profile) RecordAppearance(position shared.Position, score int, won bool, now time.Time) {
	p.TotalParticipations++
	p.TotalPoints += score
	if position.Better(p.BestPosition) {
		p.BestPosition = position
	}
	if won {
		p.TotalWins++
	}
	p.UpdatedAt = now.UTC()
}

// SetRating commits a propagated rating for one track.
func (p *Profile) SetRating(track shared.Track, rating int) {
	if p.Ratings == nil {
		p.Ratings = make(map[shared.Track]int, 2)
	}
	p.Ratings[track] = rating
}

// ResetAggregates clears everything derived from history, keeping identity.
// Used by a full rebuild before replaying snapshots.
func (p *Profile) ResetAggregates() {
	p.TotalParticipations = 0
	p.TotalWins = 0
	p.TotalPoints = 0
	p.BestPosition = 0
	p.SuspectedBanned = false
	for _, track := range shared.AllTracks() {
		p.Ratings[track] = DefaultRating
	}
}
