package query

import (
	"context"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/pool"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET POOL QUERY
// Получает маппул и кумулятивную таблицу пул-соревнования.
// ══════════════════════════════════════════════════════════════════════════════

// PoolMapDTO - DTO одной карты пула.
type PoolMapDTO struct {
	// MapID - osu! ID карты.
	MapID int64 `json:"map_id"`

	// Title - название карты.
	Title string `json:"title"`

	// AddedAt - когда карта попала в пул.
	AddedAt time.Time `json:"added_at"`
}

// PoolStandingDTO - DTO одной строки пул-таблицы.
type PoolStandingDTO struct {
	// Position - позиция по сумме лучших скоров.
	Position int `json:"position"`

	// UserID - osu! ID игрока.
	UserID int64 `json:"user_id"`

	// Nickname - ник игрока.
	Nickname string `json:"nickname"`

	// Total - сумма лучших скоров по всем картам.
	Total int64 `json:"total"`

	// MapsPlayed - количество карт с хотя бы одним скором.
	MapsPlayed int `json:"maps_played"`

	// Scores - лучший скор по каждой сыгранной карте.
	Scores map[int64]int64 `json:"scores,omitempty"`
}

// GetPoolResult содержит результат запроса пула.
type GetPoolResult struct {
	// Maps - фиксированный маппул.
	Maps []PoolMapDTO `json:"maps"`

	// Standings - кумулятивная таблица.
	Standings []PoolStandingDTO `json:"standings"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetPoolHandler обрабатывает запросы пула.
type GetPoolHandler struct {
	poolRepo pool.Repository
}

// NewGetPoolHandler создаёт новый обработчик.
func NewGetPoolHandler(poolRepo pool.Repository) *GetPoolHandler {
	return &GetPoolHandler{poolRepo: poolRepo}
}

// Handle выполняет запрос.
func (h *GetPoolHandler) Handle(ctx context.Context) (*GetPoolResult, error) {
	maps, err := h.poolRepo.FindMaps(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetPool", shared.ErrPersistence, "failed to load map pool", err)
	}
	scores, err := h.poolRepo.FindScores(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetPool", shared.ErrPersistence, "failed to load scores", err)
	}

	mapDTOs := make([]PoolMapDTO, len(maps))
	for i, m := range maps {
		mapDTOs[i] = PoolMapDTO{MapID: m.ID, Title: m.Title, AddedAt: m.AddedAt}
	}

	// Лучшие скоры по игрокам для детализации строк
	byUser := make(map[shared.OsuUserID]map[int64]int64)
	for _, s := range scores {
		if byUser[s.UserID] == nil {
			byUser[s.UserID] = make(map[int64]int64)
		}
		byUser[s.UserID][s.MapID] = s.Best
	}

	rows := pool.BuildStandings(scores)
	standings := make([]PoolStandingDTO, len(rows))
	for i, row := range rows {
		standings[i] = PoolStandingDTO{
			Position:   row.Position.Int(),
			UserID:     row.UserID.Int64(),
			Nickname:   row.Nickname.String(),
			Total:      row.Total,
			MapsPlayed: row.MapsPlayed,
			Scores:     byUser[row.UserID],
		}
	}

	return &GetPoolResult{
		Maps:        mapDTOs,
		Standings:   standings,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
