package osu

import (
	"github.com/pp-arena/pp-arena/internal/application/command"
	"github.com/pp-arena/pp-arena/internal/domain/pool"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - converts external DTOs to application/domain types
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts osu! API DTOs to application types.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// UserStatsFromDTO converts a user DTO to application user stats.
// A user without statistics (restricted or brand new) maps to zero PP and
// zero play count; the eligibility filter treats that as unverifiable.
func (m *Mapper) UserStatsFromDTO(dto *UserDTO) *command.UserStats {
	stats := &command.UserStats{
		UserID:    shared.OsuUserID(dto.ID),
		Nickname:  shared.Nickname(dto.Username),
		AvatarURL: dto.AvatarURL,
	}
	if dto.Statistics != nil {
		stats.PP = shared.PP(dto.Statistics.PP)
		stats.PlayCount = dto.Statistics.PlayCount
	}
	return stats
}

// BeatmapScoreFromDTO converts a beatmap score DTO to an application score.
func (m *Mapper) BeatmapScoreFromDTO(dto *BeatmapUserScoreDTO) *command.BeatmapScore {
	return &command.BeatmapScore{
		Score: dto.Score.Score,
		SetAt: dto.Score.CreatedAt,
	}
}

// PoolMapFromDTO converts a beatmap DTO to a pool map.
func (m *Mapper) PoolMapFromDTO(dto *BeatmapDTO) *pool.Map {
	return &pool.Map{
		ID:    dto.ID,
		Title: dto.DisplayTitle(),
	}
}
