package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

func TestScore_ImproveOnlyKeepsBetter(t *testing.T) {
	s := &Score{UserID: 1, MapID: 100, Best: 700000}

	assert.False(t, s.Improve(650000, time.Now()), "worse score ignored")
	assert.False(t, s.Improve(700000, time.Now()), "equal score ignored")
	assert.True(t, s.Improve(710000, time.Now()))
	assert.Equal(t, int64(710000), s.Best)
}

func TestBuildStandings_RanksByCumulativeTotal(t *testing.T) {
	t0 := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	scores := []*Score{
		{UserID: 1, Nickname: "a", MapID: 100, Best: 500000, SetAt: t0},
		{UserID: 1, Nickname: "a", MapID: 101, Best: 400000, SetAt: t0.Add(time.Hour)},
		{UserID: 2, Nickname: "b", MapID: 100, Best: 950000, SetAt: t0.Add(2 * time.Hour)},
		{UserID: 3, Nickname: "c", MapID: 101, Best: 300000, SetAt: t0},
	}

	rows := BuildStandings(scores)
	require.Len(t, rows, 3)

	assert.Equal(t, shared.OsuUserID(2), rows[0].UserID)
	assert.Equal(t, shared.Position(1), rows[0].Position)
	assert.Equal(t, int64(950000), rows[0].Total)

	assert.Equal(t, shared.OsuUserID(1), rows[1].UserID)
	assert.Equal(t, 2, rows[1].MapsPlayed)
	assert.Equal(t, int64(900000), rows[1].Total)

	assert.Equal(t, shared.OsuUserID(3), rows[2].UserID)
}

func TestBuildStandings_TieBrokenByEarlierScore(t *testing.T) {
	t0 := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	scores := []*Score{
		{UserID: 1, Nickname: "late", MapID: 100, Best: 500000, SetAt: t0.Add(time.Hour)},
		{UserID: 2, Nickname: "early", MapID: 100, Best: 500000, SetAt: t0},
	}

	rows := BuildStandings(scores)
	require.Len(t, rows, 2)
	assert.Equal(t, shared.OsuUserID(2), rows[0].UserID)
	assert.Equal(t, shared.OsuUserID(1), rows[1].UserID)
}
