package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

func TestAssignPositions_TieBrokenByRegistration(t *testing.T) {
	early := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	placements := AssignPositions([]RankEntry{
		{ID: 1, Points: 100, RegisteredAt: late},
		{ID: 2, Points: 100, RegisteredAt: early},
		{ID: 3, Points: 50, RegisteredAt: early},
	})

	require.Len(t, placements, 3)
	byID := map[shared.OsuUserID]shared.Position{}
	for _, p := range placements {
		byID[p.ID] = p.Position
	}

	// Earlier-registered wins the tie; no shared rank.
	assert.Equal(t, shared.Position(1), byID[2])
	assert.Equal(t, shared.Position(2), byID[1])
	assert.Equal(t, shared.Position(3), byID[3])
}

func TestAssignPositions_DenseUniqueRanks(t *testing.T) {
	now := time.Now()
	entries := make([]RankEntry, 20)
	for i := range entries {
		entries[i] = RankEntry{
			ID:           shared.OsuUserID(i + 1),
			Points:       shared.Points(i % 4), // lots of ties
			RegisteredAt: now.Add(time.Duration(i) * time.Minute),
		}
	}

	placements := AssignPositions(entries)
	seen := map[shared.Position]bool{}
	for _, p := range placements {
		assert.False(t, seen[p.Position], "position %d assigned twice", p.Position)
		seen[p.Position] = true
		assert.GreaterOrEqual(t, p.Position.Int(), 1)
		assert.LessOrEqual(t, p.Position.Int(), len(entries))
	}
}

func TestAssignPositions_Empty(t *testing.T) {
	assert.Empty(t, AssignPositions(nil))
}

func TestReorder_ReturnsOnlyChanged(t *testing.T) {
	now := time.Now()
	a := &Participant{UserID: 1, Nickname: "a", Points: 300, Position: 1, RegisteredAt: now}
	b := &Participant{UserID: 2, Nickname: "b", Points: 200, Position: 2, RegisteredAt: now.Add(time.Minute)}
	c := &Participant{UserID: 3, Nickname: "c", Points: 100, Position: 3, RegisteredAt: now.Add(2 * time.Minute)}

	// c overtakes b: exactly two rows change, a stays untouched.
	c.Points = 250
	changed := Reorder([]*Participant{a, b, c})

	require.Len(t, changed, 2)
	assert.Equal(t, shared.Position(1), a.Position)
	assert.Equal(t, shared.Position(2), c.Position)
	assert.Equal(t, shared.Position(3), b.Position)
}

func TestReorder_NoChangesNoWrites(t *testing.T) {
	now := time.Now()
	a := &Participant{UserID: 1, Nickname: "a", Points: 300, Position: 1, RegisteredAt: now}
	b := &Participant{UserID: 2, Nickname: "b", Points: 200, Position: 2, RegisteredAt: now.Add(time.Minute)}

	assert.Empty(t, Reorder([]*Participant{a, b}))
}
