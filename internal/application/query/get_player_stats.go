package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/player"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAYER STATS QUERY
// Получает накопленную статистику игрока: рейтинги по трекам, участия,
// победы, лучшую позицию.
// ══════════════════════════════════════════════════════════════════════════════

// GetPlayerStatsQuery содержит параметры запроса статистики игрока.
type GetPlayerStatsQuery struct {
	// UserID - osu! ID игрока. Если 0, поиск по нику.
	UserID int64

	// Nickname - ник игрока (для старых профилей без ID).
	Nickname string
}

// Validate проверяет корректность параметров запроса.
func (q *GetPlayerStatsQuery) Validate() error {
	if q.UserID <= 0 && q.Nickname == "" {
		return errors.New("either user_id or nickname must be provided")
	}
	return nil
}

// PlayerStatsDTO - DTO профиля игрока.
type PlayerStatsDTO struct {
	// UserID - osu! ID (0 для профилей без ID).
	UserID int64 `json:"user_id,omitempty"`

	// Nickname - последний известный ник.
	Nickname string `json:"nickname"`

	// Ratings - рейтинг по каждому треку.
	Ratings map[string]int `json:"ratings"`

	// TotalParticipations - количество участий в еженедельных турнирах.
	TotalParticipations int `json:"total_participations"`

	// TotalWins - количество засчитанных побед.
	TotalWins int `json:"total_wins"`

	// TotalPoints - сумма очков за все турниры.
	TotalPoints int `json:"total_points"`

	// BestPosition - лучшая позиция за всё время (0 = нет участий).
	BestPosition int `json:"best_position,omitempty"`

	// SuspectedBanned - не удалось проверить аккаунт через API.
	SuspectedBanned bool `json:"suspected_banned,omitempty"`

	// UpdatedAt - время последнего пересчёта.
	UpdatedAt time.Time `json:"updated_at"`
}

// GetPlayerStatsHandler обрабатывает запросы статистики игрока.
type GetPlayerStatsHandler struct {
	playerRepo player.Repository
}

// NewGetPlayerStatsHandler создаёт новый обработчик.
func NewGetPlayerStatsHandler(playerRepo player.Repository) *GetPlayerStatsHandler {
	return &GetPlayerStatsHandler{playerRepo: playerRepo}
}

// Handle выполняет запрос.
func (h *GetPlayerStatsHandler) Handle(ctx context.Context, query GetPlayerStatsQuery) (*PlayerStatsDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetPlayerStats", shared.ErrValidation, err.Error(), err)
	}

	key, _, err := shared.ResolvePlayerKey(shared.OsuUserID(query.UserID), shared.Nickname(query.Nickname))
	if err != nil {
		return nil, shared.WrapError("query", "GetPlayerStats", shared.ErrValidation, "unresolvable identity", err)
	}

	p, err := h.playerRepo.FindByKey(ctx, key)
	if err != nil {
		if shared.IsNotFound(err) && query.UserID > 0 && query.Nickname != "" {
			// Профиль мог остаться под ником, если игрок ни разу не
			// появлялся в истории с ID.
			fallback, _, fbErr := shared.ResolvePlayerKey(0, shared.Nickname(query.Nickname))
			if fbErr == nil {
				p, err = h.playerRepo.FindByKey(ctx, fallback)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	return toPlayerStats(p), nil
}

// toPlayerStats конвертирует профиль в DTO.
func toPlayerStats(p *player.Profile) *PlayerStatsDTO {
	ratings := make(map[string]int, len(p.Ratings))
	for track, rating := range p.Ratings {
		ratings[track.String()] = rating
	}

	return &PlayerStatsDTO{
		UserID:              p.UserID.Int64(),
		Nickname:            p.Nickname.String(),
		Ratings:             ratings,
		TotalParticipations: p.TotalParticipations,
		TotalWins:           p.TotalWins,
		TotalPoints:         p.TotalPoints,
		BestPosition:        p.BestPosition.Int(),
		SuspectedBanned:     p.SuspectedBanned,
		UpdatedAt:           p.UpdatedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST PLAYERS QUERY
// Рейтинговая таблица всех известных игроков по выбранному треку.
// ══════════════════════════════════════════════════════════════════════════════

// ListPlayersQuery содержит параметры запроса списка игроков.
type ListPlayersQuery struct {
	// Track - трек, по рейтингу которого сортировать.
	Track string

	// Limit - количество записей (по умолчанию 50).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *ListPlayersQuery) Validate() error {
	if q.Track == "" {
		q.Track = shared.TrackWeekly.String()
	}
	if !shared.Track(q.Track).IsValid() {
		return shared.ErrUnknownTrack
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	return nil
}

// ListPlayersResult содержит результат запроса списка игроков.
type ListPlayersResult struct {
	// Players - игроки по убыванию рейтинга выбранного трека.
	Players []PlayerStatsDTO `json:"players"`

	// TotalCount - общее количество известных игроков.
	TotalCount int `json:"total_count"`

	// Track - трек сортировки.
	Track string `json:"track"`
}

// ListPlayersHandler обрабатывает запросы списка игроков.
type ListPlayersHandler struct {
	playerRepo player.Repository
}

// NewListPlayersHandler создаёт новый обработчик.
func NewListPlayersHandler(playerRepo player.Repository) *ListPlayersHandler {
	return &ListPlayersHandler{playerRepo: playerRepo}
}

// Handle выполняет запрос.
func (h *ListPlayersHandler) Handle(ctx context.Context, query ListPlayersQuery) (*ListPlayersResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListPlayers", shared.ErrValidation, err.Error(), err)
	}

	profiles, err := h.playerRepo.FindAll(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "ListPlayers", shared.ErrPersistence, "failed to load players", err)
	}

	track := shared.Track(query.Track)
	sort.SliceStable(profiles, func(i, j int) bool {
		ri, rj := profiles[i].Rating(track), profiles[j].Rating(track)
		if ri != rj {
			return ri > rj
		}
		// При равном рейтинге детерминируем по ключу
		return profiles[i].Key < profiles[j].Key
	})

	total := len(profiles)
	if query.Limit < len(profiles) {
		profiles = profiles[:query.Limit]
	}

	players := make([]PlayerStatsDTO, len(profiles))
	for i, p := range profiles {
		players[i] = *toPlayerStats(p)
	}

	return &ListPlayersResult{
		Players:    players,
		TotalCount: total,
		Track:      query.Track,
	}, nil
}
