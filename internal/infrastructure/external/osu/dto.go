// Package osu implements the osu! API v2 client.
// This package handles all communication with the osu! platform: player
// statistics for the weekly competition and per-beatmap best scores for the
// map-pool competition.
package osu

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO represents a user as returned by GET /users/{id}/{mode}.
// This is the external representation that gets mapped to our domain model.
type UserDTO struct {
	// ID is the stable osu! user id
	ID int64 `json:"id"`

	// Username is the current display name (players rename freely)
	Username string `json:"username"`

	// AvatarURL is the URL to the user's avatar
	AvatarURL string `json:"avatar_url,omitempty"`

	// CountryCode is the ISO country code
	CountryCode string `json:"country_code,omitempty"`

	// IsBot indicates a bot account
	IsBot bool `json:"is_bot,omitempty"`

	// IsActive indicates recent activity on the account
	IsActive bool `json:"is_active,omitempty"`

	// LastVisit is the last time the user was seen online
	LastVisit *time.Time `json:"last_visit,omitempty"`

	// JoinDate is when the account was created
	JoinDate time.Time `json:"join_date,omitempty"`

	// Statistics contains the per-mode performance statistics
	Statistics *UserStatisticsDTO `json:"statistics,omitempty"`
}

// UserStatisticsDTO contains per-mode performance statistics.
type UserStatisticsDTO struct {
	// PP is the performance points total
	PP float64 `json:"pp"`

	// GlobalRank is the global rank (null for inactive accounts)
	GlobalRank *int `json:"global_rank,omitempty"`

	// CountryRank is the rank within the user's country
	CountryRank *int `json:"country_rank,omitempty"`

	// PlayCount is the lifetime play count; the smurf filter threshold input
	PlayCount int `json:"play_count"`

	// PlayTime is total play time in seconds
	PlayTime int `json:"play_time,omitempty"`

	// RankedScore is the total ranked score
	RankedScore int64 `json:"ranked_score,omitempty"`

	// TotalScore is the total score across all plays
	TotalScore int64 `json:"total_score,omitempty"`

	// HitAccuracy is the weighted hit accuracy percentage
	HitAccuracy float64 `json:"hit_accuracy,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// BeatmapUserScoreDTO represents the response of
// GET /beatmaps/{beatmap}/scores/users/{user}.
type BeatmapUserScoreDTO struct {
	// Position is the score's rank on the beatmap leaderboard
	Position int `json:"position"`

	// Score is the best score itself
	Score ScoreDTO `json:"score"`
}

// ScoreDTO represents a single score.
type ScoreDTO struct {
	// ID is the score id
	ID int64 `json:"id"`

	// UserID is the player who set the score
	UserID int64 `json:"user_id"`

	// Accuracy is in the 0..1 range
	Accuracy float64 `json:"accuracy"`

	// Mods lists the acronyms of enabled mods
	Mods []string `json:"mods,omitempty"`

	// Score is the classic score value; the pool competition metric
	Score int64 `json:"score"`

	// MaxCombo is the highest combo reached
	MaxCombo int `json:"max_combo,omitempty"`

	// Rank is the grade letter (SS, S, A, ...)
	Rank string `json:"rank,omitempty"`

	// CreatedAt is when the score was set
	CreatedAt time.Time `json:"created_at"`

	// PP is the performance points awarded for the score
	PP *float64 `json:"pp,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// BEATMAP DTOs
// ══════════════════════════════════════════════════════════════════════════════

// BeatmapDTO represents a beatmap as returned by GET /beatmaps/{id}.
type BeatmapDTO struct {
	// ID is the beatmap (difficulty) id
	ID int64 `json:"id"`

	// Version is the difficulty name
	Version string `json:"version"`

	// DifficultyRating is the star rating
	DifficultyRating float64 `json:"difficulty_rating,omitempty"`

	// Status is the ranked status ("ranked", "loved", ...)
	Status string `json:"status,omitempty"`

	// Beatmapset holds the parent set metadata
	Beatmapset *BeatmapsetDTO `json:"beatmapset,omitempty"`
}

// BeatmapsetDTO contains the parent beatmapset metadata.
type BeatmapsetDTO struct {
	ID     int64  `json:"id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// DisplayTitle builds the conventional "Artist - Title [Diff]" string.
func (b *BeatmapDTO) DisplayTitle() string {
	if b.Beatmapset == nil {
		return b.Version
	}
	return fmt.Sprintf("%s - %s [%s]", b.Beatmapset.Artist, b.Beatmapset.Title, b.Version)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO represents an error payload from the osu! API.
type APIErrorDTO struct {
	// ErrorText is the error description ("null" body on plain 404s)
	ErrorText string `json:"error,omitempty"`

	// Status is the HTTP status the error arrived with (not part of the payload)
	Status int `json:"-"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.ErrorText != "" {
		return fmt.Sprintf("osu api error (status %d): %s", e.Status, e.ErrorText)
	}
	return fmt.Sprintf("osu api error: status %d", e.Status)
}
