package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

func TestNewSnapshot_FreezesParticipantsInPositionOrder(t *testing.T) {
	now := time.Date(2025, 7, 6, 21, 0, 0, 0, time.UTC)
	participants := []*Participant{
		{UserID: 3, Nickname: "third", Points: 10, Position: 3, RatingStart: 1000, RatingEnd: 1010, RegisteredAt: now},
		{UserID: 1, Nickname: "first", Points: 500, Position: 1, RatingStart: 4000, RatingEnd: 4100, RegisteredAt: now},
		{UserID: 2, Nickname: "second", Points: 100, Position: 2, RatingStart: 2000, RatingEnd: 2050, RegisteredAt: now},
	}
	playCounts := map[shared.OsuUserID]int{1: 45000, 2: 20000, 3: 5000}

	s := NewSnapshot(participants, playCounts, now)

	require.Len(t, s.Entries, 3)
	assert.Equal(t, shared.TrackWeekly, s.Track)
	assert.Equal(t, shared.OsuUserID(1), s.Entries[0].UserID)
	assert.Equal(t, shared.OsuUserID(2), s.Entries[1].UserID)
	assert.Equal(t, shared.OsuUserID(3), s.Entries[2].UserID)
	assert.Equal(t, 500, s.Entries[0].Score)
	assert.Equal(t, 45000, s.Entries[0].PlayCount)
	assert.False(t, s.Processed())
	assert.False(t, s.FullyAnnotated())
}

func TestSnapshotID_DeterministicPerPeriod(t *testing.T) {
	closedAt := time.Date(2025, 7, 6, 21, 0, 0, 0, time.UTC)

	assert.Equal(t,
		SnapshotID(shared.TrackWeekly, closedAt),
		SnapshotID(shared.TrackWeekly, closedAt),
		"same period, same ID")
	assert.NotEqual(t,
		SnapshotID(shared.TrackWeekly, closedAt),
		SnapshotID(shared.TrackPool, closedAt),
		"tracks never collide")
	assert.NotEqual(t,
		SnapshotID(shared.TrackWeekly, closedAt),
		SnapshotID(shared.TrackWeekly, closedAt.AddDate(0, 0, 7)),
		"periods never collide")
}

func TestNewPoolSnapshot_OrdersByPosition(t *testing.T) {
	closedAt := time.Date(2025, 7, 6, 21, 0, 0, 0, time.UTC)
	entries := []*SnapshotEntry{
		{Position: 2, UserID: 2, Nickname: "second", Score: 900_000},
		{Position: 1, UserID: 1, Nickname: "first", Score: 1_750_000},
	}

	s := NewPoolSnapshot(entries, closedAt)

	assert.Equal(t, shared.TrackPool, s.Track)
	assert.Equal(t, SnapshotID(shared.TrackPool, closedAt), s.ID)
	require.Len(t, s.Entries, 2)
	assert.Equal(t, shared.OsuUserID(1), s.Entries[0].UserID)
	assert.Equal(t, 1_750_000, s.Entries[0].Score)
}

func TestSnapshot_FullyAnnotated(t *testing.T) {
	elo := 1016
	s := &Snapshot{
		Entries: []*SnapshotEntry{
			{Position: 1, UserID: 1, EloAfter: &elo},
			{Position: 2, UserID: 2},
		},
	}
	assert.False(t, s.FullyAnnotated())

	s.Entries[1].EloAfter = &elo
	assert.True(t, s.FullyAnnotated())
}

func TestSnapshotEntry_KeyResolution(t *testing.T) {
	e := &SnapshotEntry{UserID: 42, Nickname: "SomeNick"}
	key, fallback, err := e.Key()
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, shared.PlayerKey("id:42"), key)

	// Old entry without user ID: case-insensitive nickname fallback.
	e = &SnapshotEntry{Nickname: "SomeNick"}
	key, fallback, err = e.Key()
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, shared.PlayerKey("nick:somenick"), key)

	// Neither identity: skipped, never fatal.
	e = &SnapshotEntry{}
	_, _, err = e.Key()
	assert.ErrorIs(t, err, shared.ErrUnresolvableIdentity)
}

func TestSortSnapshots_ChronologicalOrder(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 7)
	t3 := t1.AddDate(0, 0, 14)

	snapshots := []*Snapshot{
		{ID: "c", SnapshotAt: t3},
		{ID: "a", SnapshotAt: t1},
		{ID: "b", SnapshotAt: t2},
	}
	SortSnapshots(snapshots)

	assert.Equal(t, "a", snapshots[0].ID)
	assert.Equal(t, "b", snapshots[1].ID)
	assert.Equal(t, "c", snapshots[2].ID)
}
