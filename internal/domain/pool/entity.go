// Package pool contains the map-pool competition: best scores per player on
// a fixed set of maps, summed into a cumulative pool score that feeds the
// pool rating track.
package pool

import (
	"sort"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// Map is one beatmap of the fixed competition pool.
type Map struct {
	// ID is the osu! beatmap id.
	ID int64

	// Title is the display title ("Artist - Title [Diff]").
	Title string

	// AddedAt is when the map entered the pool.
	AddedAt time.Time
}

// Score is a player's best result on one pool map. Only improvements are
// recorded: the stored score is monotonically non-decreasing.
type Score struct {
	UserID   shared.OsuUserID
	Nickname shared.Nickname
	MapID    int64

	// Best is the best classic score value observed on the map.
	Best int64

	// SetAt is when the best score was achieved.
	SetAt time.Time
}

// Improve replaces the stored best when the candidate beats it.
// Returns true when something changed.
func (s *Score) Improve(candidate int64, setAt time.Time) bool {
	if candidate <= s.Best {
		return false
	}
	s.Best = candidate
	s.SetAt = setAt.UTC()
	return true
}

// StandingRow is a player's cumulative pool standing.
type StandingRow struct {
	UserID   shared.OsuUserID
	Nickname shared.Nickname

	// Total is the sum of best scores across all pool maps; the score
	// metric of the pool rating track.
	Total int64

	// MapsPlayed counts pool maps with at least one recorded score.
	MapsPlayed int

	// Position is the dense rank over Total descending.
	Position shared.Position

	// FirstScoreAt is the earliest best-score timestamp, the tie-break key
	// (mirrors the weekly track: earlier commitment wins).
	FirstScoreAt time.Time
}

// BuildStandings folds per-map scores into ranked cumulative standings.
func BuildStandings(scores []*Score) []*StandingRow {
	byUser := make(map[shared.OsuUserID]*StandingRow)
	order := make([]shared.OsuUserID, 0)
	for _, s := range scores {
		row, ok := byUser[s.UserID]
		if !ok {
			row = &StandingRow{UserID: s.UserID, Nickname: s.Nickname, FirstScoreAt: s.SetAt}
			byUser[s.UserID] = row
			order = append(order, s.UserID)
		}
		row.Total += s.Best
		row.MapsPlayed++
		if s.SetAt.Before(row.FirstScoreAt) {
			row.FirstScoreAt = s.SetAt
		}
	}

	rows := make([]*StandingRow, 0, len(byUser))
	for _, id := range order {
		rows = append(rows, byUser[id])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		if !rows[i].FirstScoreAt.Equal(rows[j].FirstScoreAt) {
			return rows[i].FirstScoreAt.Before(rows[j].FirstScoreAt)
		}
		return rows[i].UserID < rows[j].UserID
	})
	for i, row := range rows {
		row.Position = shared.Position(i + 1)
	}
	return rows
}
