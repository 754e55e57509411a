// Package tournament contains the domain model of the weekly PP competition:
// live participants, the bracket points formula, position assignment and
// history snapshots written at period close.
package tournament

import (
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// Participant is a live entry of the currently open tournament.
// Created on registration, mutated by the periodic refresh, frozen into a
// HistorySnapshot when the period closes.
type Participant struct {
	// UserID is the stable osu! identity. Unique per open tournament.
	UserID shared.OsuUserID

	// Nickname is the osu! username at registration time.
	Nickname shared.Nickname

	// AvatarURL is the profile picture URL (may be empty).
	AvatarURL string

	// RatingStart is the PP captured at registration.
	RatingStart shared.PP

	// RatingEnd is the last observed PP.
	RatingEnd shared.PP

	// Points is derived from (RatingStart, RatingEnd) by the bracket formula.
	Points shared.Points

	// Position is the dense rank within the live standings (0 = unranked yet).
	Position shared.Position

	// RegisteredAt is the registration timestamp, also the tie-break key:
	// earlier commitment wins equal points.
	RegisteredAt time.Time
}

// NewParticipant creates a participant at registration time. Start and end
// rating begin equal, so points are zero by construction.
func NewParticipant(userID shared.OsuUserID, nickname shared.Nickname, avatarURL string, currentPP shared.PP, now time.Time) (*Participant, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidOsuUserID
	}
	if !nickname.IsValid() {
		return nil, shared.WrapError("tournament", "Register", shared.ErrEmptyValue, "nickname is required", nil)
	}
	if !currentPP.IsValid() {
		return nil, shared.WrapError("tournament", "Register", shared.ErrNegativeValue, "rating cannot be negative", nil)
	}

	return &Participant{
		UserID:       userID,
		Nickname:     nickname,
		AvatarURL:    avatarURL,
		RatingStart:  currentPP,
		RatingEnd:    currentPP,
		Points:       0,
		RegisteredAt: now.UTC(),
	}, nil
}

// ObserveRating records a newly fetched rating and recomputes points.
// Returns true if anything changed. Positions are reassigned separately,
// across the whole standings, by AssignPositions.
func (p *Participant) ObserveRating(current shared.PP) bool {
	if !current.IsValid() {
		return false
	}
	pts := shared.Points(Points(p.RatingStart.Float64(), current.Float64()))
	if p.RatingEnd == current && p.Points == pts {
		return false
	}
	p.RatingEnd = current
	p.Points = pts
	return true
}

// Validate checks entity invariants.
func (p *Participant) Validate() error {
	if !p.UserID.IsValid() {
		return shared.ErrInvalidOsuUserID
	}
	if !p.Nickname.IsValid() {
		return shared.WrapError("tournament", "Validate", shared.ErrEmptyValue, "nickname is required", nil)
	}
	if !p.Points.IsValid() {
		return shared.WrapError("tournament", "Validate", shared.ErrNegativeValue, "points cannot be negative", nil)
	}
	if p.RegisteredAt.IsZero() {
		return shared.WrapError("tournament", "Validate", shared.ErrEmptyValue, "registration timestamp is required", nil)
	}
	return nil
}
