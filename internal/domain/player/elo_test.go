package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

func TestPropagateRatings_TwoPlayerSymmetry(t *testing.T) {
	standings := []Standing{
		{Key: "id:1", Score: 100},
		{Key: "id:2", Score: 50},
	}
	table := RatingTable{"id:1": 1000, "id:2": 1000}

	updated := PropagateRatings(standings, table)
	require.Len(t, updated, 2)

	// Equal pre-ratings: expected score is 0.5 for both, so the winner
	// gains K/2 = 160 and the loser loses the same before rounding.
	assert.Greater(t, updated["id:1"], 1000)
	assert.Less(t, updated["id:2"], 1000)
	gain := updated["id:1"] - 1000
	loss := 1000 - updated["id:2"]
	assert.InDelta(t, gain, loss, 1)
}

func TestPropagateRatings_Draw(t *testing.T) {
	standings := []Standing{
		{Key: "id:1", Score: 70},
		{Key: "id:2", Score: 70},
	}
	table := RatingTable{"id:1": 1000, "id:2": 1000}

	updated := PropagateRatings(standings, table)
	assert.Equal(t, 1000, updated["id:1"])
	assert.Equal(t, 1000, updated["id:2"])
}

func TestPropagateRatings_UnderdogGainsMore(t *testing.T) {
	// A heavy favourite beating an underdog should gain almost nothing;
	// the reverse upset should swing hard.
	favouriteWins := PropagateRatings([]Standing{
		{Key: "id:fav", Score: 100},
		{Key: "id:dog", Score: 10},
	}, RatingTable{"id:fav": 1800, "id:dog": 1000})

	upset := PropagateRatings([]Standing{
		{Key: "id:fav", Score: 10},
		{Key: "id:dog", Score: 100},
	}, RatingTable{"id:fav": 1800, "id:dog": 1000})

	assert.Less(t, favouriteWins["id:fav"]-1800, upset["id:dog"]-1000)
}

func TestPropagateRatings_SinglePlayerUnchanged(t *testing.T) {
	updated := PropagateRatings([]Standing{{Key: "id:1", Score: 500}}, RatingTable{"id:1": 1234})
	assert.Equal(t, 1234, updated["id:1"])
}

func TestPropagateRatings_Empty(t *testing.T) {
	assert.Empty(t, PropagateRatings(nil, RatingTable{}))
}

func TestPropagateRatings_DefaultRatingForUnseenPlayers(t *testing.T) {
	updated := PropagateRatings([]Standing{
		{Key: "id:1", Score: 100},
		{Key: "id:2", Score: 50},
	}, RatingTable{})

	// Both start from 1000; the sum of the two is preserved up to rounding.
	assert.InDelta(t, 2*DefaultRating, updated["id:1"]+updated["id:2"], 1)
}

func TestPropagateRatings_Deterministic(t *testing.T) {
	standings := []Standing{
		{Key: "id:1", Score: 320},
		{Key: "id:2", Score: 180},
		{Key: "id:3", Score: 180},
		{Key: "id:4", Score: 40},
		{Key: "nick:ghost", Score: 0},
	}
	table := RatingTable{"id:1": 1350, "id:2": 990, "id:3": 1105, "id:4": 870}

	first := PropagateRatings(standings, table)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, PropagateRatings(standings, table))
	}
}

func TestPropagateRatings_NoIntraSnapshotLeakage(t *testing.T) {
	// Every comparison must use the pre-snapshot table. If A's updated
	// rating leaked into the A-vs-C comparison, C's result would depend on
	// the standings order. Permute and compare.
	table := RatingTable{"id:a": 1200, "id:b": 1000, "id:c": 800}
	ordered := []Standing{{Key: "id:a", Score: 3}, {Key: "id:b", Score: 2}, {Key: "id:c", Score: 1}}
	reversed := []Standing{{Key: "id:c", Score: 1}, {Key: "id:b", Score: 2}, {Key: "id:a", Score: 3}}

	assert.Equal(t, PropagateRatings(ordered, table), PropagateRatings(reversed, table))
}

func TestRatingTable_Rating(t *testing.T) {
	table := RatingTable{shared.PlayerKey("id:7"): 1500}
	assert.Equal(t, 1500, table.Rating("id:7"))
	assert.Equal(t, DefaultRating, table.Rating("id:8"))
}
