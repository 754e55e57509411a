// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает текущую таблицу открытого турнира: позиции, очки, прирост PP.
// Горячий путь фронтенда, поэтому результат кешируется целиком.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса таблицы.
type GetLeaderboardQuery struct {
	// Limit - количество записей (0 = все участники).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// LeaderboardRowDTO - DTO одной строки таблицы.
type LeaderboardRowDTO struct {
	// Position - позиция в таблице (начиная с 1).
	Position int `json:"position"`

	// UserID - osu! ID участника.
	UserID int64 `json:"user_id"`

	// Nickname - ник участника.
	Nickname string `json:"nickname"`

	// AvatarURL - ссылка на аватар.
	AvatarURL string `json:"avatar_url,omitempty"`

	// RatingStart - PP на момент регистрации.
	RatingStart float64 `json:"rating_start"`

	// RatingEnd - последний наблюдённый PP.
	RatingEnd float64 `json:"rating_end"`

	// Points - очки по формуле скобок.
	Points int `json:"points"`

	// RegisteredAt - время регистрации (ключ при равенстве очков).
	RegisteredAt time.Time `json:"registered_at"`
}

// GetLeaderboardResult содержит результат запроса таблицы.
type GetLeaderboardResult struct {
	// Rows - строки таблицы.
	Rows []LeaderboardRowDTO `json:"rows"`

	// TotalCount - общее количество участников.
	TotalCount int `json:"total_count"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`

	// FromCache - получен ли результат из кеша.
	FromCache bool `json:"-"`
}

// StandingsCache кеширует собранную таблицу целиком.
type StandingsCache interface {
	// GetStandings возвращает кешированную таблицу, если она есть.
	GetStandings(ctx context.Context) ([]LeaderboardRowDTO, bool)

	// SetStandings кеширует таблицу.
	SetStandings(ctx context.Context, rows []LeaderboardRowDTO) error
}

// GetLeaderboardHandler обрабатывает запросы таблицы.
type GetLeaderboardHandler struct {
	participantRepo tournament.ParticipantRepository
	cache           StandingsCache
}

// NewGetLeaderboardHandler создаёт новый обработчик.
func NewGetLeaderboardHandler(participantRepo tournament.ParticipantRepository, cache StandingsCache) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{participantRepo: participantRepo, cache: cache}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	// Сначала кеш
	if h.cache != nil {
		if rows, ok := h.cache.GetStandings(ctx); ok {
			return h.buildResult(rows, query, true), nil
		}
	}

	participants, err := h.participantRepo.FindAll(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrPersistence, "failed to load standings", err)
	}

	// Позиции присвоены при записи; запрос лишь сортирует свою копию по ним.
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Position < participants[j].Position
	})

	rows := make([]LeaderboardRowDTO, len(participants))
	for i, p := range participants {
		rows[i] = toLeaderboardRow(p)
	}

	if h.cache != nil {
		_ = h.cache.SetStandings(ctx, rows)
	}

	return h.buildResult(rows, query, false), nil
}

// buildResult применяет пагинацию и собирает результат.
func (h *GetLeaderboardHandler) buildResult(rows []LeaderboardRowDTO, query GetLeaderboardQuery, fromCache bool) *GetLeaderboardResult {
	total := len(rows)

	if query.Offset >= len(rows) {
		rows = nil
	} else {
		rows = rows[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(rows) {
		rows = rows[:query.Limit]
	}

	return &GetLeaderboardResult{
		Rows:        rows,
		TotalCount:  total,
		GeneratedAt: time.Now().UTC(),
		FromCache:   fromCache,
	}
}

// toLeaderboardRow конвертирует доменную сущность в DTO.
func toLeaderboardRow(p *tournament.Participant) LeaderboardRowDTO {
	return LeaderboardRowDTO{
		Position:     p.Position.Int(),
		UserID:       p.UserID.Int64(),
		Nickname:     p.Nickname.String(),
		AvatarURL:    p.AvatarURL,
		RatingStart:  p.RatingStart.Float64(),
		RatingEnd:    p.RatingEnd.Float64(),
		Points:       p.Points.Int(),
		RegisteredAt: p.RegisteredAt,
	}
}
