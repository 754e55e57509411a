package query

import (
	"context"
	"errors"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// Получает прошедшие турниры, от новых к старым: таблицу, победителя и
// рейтинг после пересчёта.
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryQuery содержит параметры запроса истории.
type GetHistoryQuery struct {
	// Track - трек соревнования (по умолчанию еженедельный).
	Track string

	// Limit - количество турниров (по умолчанию 10, максимум 52).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetHistoryQuery) Validate() error {
	if q.Track == "" {
		q.Track = shared.TrackWeekly.String()
	}
	if !shared.Track(q.Track).IsValid() {
		return shared.ErrUnknownTrack
	}
	if q.Limit < 0 || q.Offset < 0 {
		return errors.New("limit and offset cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 52 {
		q.Limit = 52
	}
	return nil
}

// HistoryEntryDTO - DTO одной строки исторической таблицы.
type HistoryEntryDTO struct {
	// Position - позиция в финальной таблице.
	Position int `json:"position"`

	// UserID - osu! ID (0 для старых записей без ID).
	UserID int64 `json:"user_id,omitempty"`

	// Nickname - ник на момент закрытия.
	Nickname string `json:"nickname"`

	// RatingStart - PP на старте периода.
	RatingStart float64 `json:"rating_start"`

	// RatingEnd - PP на закрытии.
	RatingEnd float64 `json:"rating_end"`

	// Score - очки за период.
	Score int `json:"score"`

	// EloAfter - рейтинг после этого турнира (nil до пересчёта).
	EloAfter *int `json:"elo_after,omitempty"`

	// IsWinner - засчитана ли победа этой строке.
	IsWinner bool `json:"is_winner"`
}

// HistoryTournamentDTO - DTO одного прошедшего турнира.
type HistoryTournamentDTO struct {
	// SnapshotID - ID снимка.
	SnapshotID string `json:"snapshot_id"`

	// ClosedAt - время закрытия периода.
	ClosedAt time.Time `json:"closed_at"`

	// Entries - финальная таблица.
	Entries []HistoryEntryDTO `json:"entries"`

	// HasWinner - определён ли победитель.
	HasWinner bool `json:"has_winner"`

	// Reconciled - прошёл ли снимок пересчёт рейтинга.
	Reconciled bool `json:"reconciled"`
}

// GetHistoryResult содержит результат запроса истории.
type GetHistoryResult struct {
	// Tournaments - прошедшие турниры, от новых к старым.
	Tournaments []HistoryTournamentDTO `json:"tournaments"`

	// TotalCount - общее количество турниров трека.
	TotalCount int `json:"total_count"`

	// Track - запрошенный трек.
	Track string `json:"track"`
}

// GetHistoryHandler обрабатывает запросы истории.
type GetHistoryHandler struct {
	historyRepo tournament.HistoryRepository
}

// NewGetHistoryHandler создаёт новый обработчик.
func NewGetHistoryHandler(historyRepo tournament.HistoryRepository) *GetHistoryHandler {
	return &GetHistoryHandler{historyRepo: historyRepo}
}

// Handle выполняет запрос.
func (h *GetHistoryHandler) Handle(ctx context.Context, query GetHistoryQuery) (*GetHistoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetHistory", shared.ErrValidation, err.Error(), err)
	}

	snapshots, err := h.historyRepo.FindSnapshots(ctx, shared.Track(query.Track))
	if err != nil {
		return nil, shared.WrapError("query", "GetHistory", shared.ErrPersistence, "failed to load history", err)
	}

	// От новых к старым
	tournament.SortSnapshots(snapshots)
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}

	total := len(snapshots)
	if query.Offset >= len(snapshots) {
		snapshots = nil
	} else {
		snapshots = snapshots[query.Offset:]
	}
	if query.Limit < len(snapshots) {
		snapshots = snapshots[:query.Limit]
	}

	dtos := make([]HistoryTournamentDTO, len(snapshots))
	for i, s := range snapshots {
		dtos[i] = toHistoryTournament(s)
	}

	return &GetHistoryResult{
		Tournaments: dtos,
		TotalCount:  total,
		Track:       query.Track,
	}, nil
}

// toHistoryTournament конвертирует снимок в DTO.
func toHistoryTournament(s *tournament.Snapshot) HistoryTournamentDTO {
	entries := make([]HistoryEntryDTO, len(s.Entries))
	for i, e := range s.Entries {
		dto := HistoryEntryDTO{
			Position:    e.Position.Int(),
			UserID:      e.UserID.Int64(),
			Nickname:    e.Nickname.String(),
			RatingStart: e.RatingStart.Float64(),
			RatingEnd:   e.RatingEnd.Float64(),
			Score:       e.Score,
			EloAfter:    e.EloAfter,
		}
		if s.WinnerKey != nil {
			if key, _, err := e.Key(); err == nil && key == *s.WinnerKey {
				dto.IsWinner = true
			}
		}
		entries[i] = dto
	}

	return HistoryTournamentDTO{
		SnapshotID: s.ID,
		ClosedAt:   s.SnapshotAt,
		Entries:    entries,
		HasWinner:  s.WinnerKey != nil,
		Reconciled: s.Processed(),
	}
}
