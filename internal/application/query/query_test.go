package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

type stubParticipantRepo struct {
	participants []*tournament.Participant
}

func (s *stubParticipantRepo) FindByUserID(_ context.Context, userID shared.OsuUserID) (*tournament.Participant, error) {
	for _, p := range s.participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, shared.ErrParticipantNotFound
}

func (s *stubParticipantRepo) FindAll(context.Context) ([]*tournament.Participant, error) {
	return s.participants, nil
}

func (s *stubParticipantRepo) Save(context.Context, *tournament.Participant) error     { return nil }
func (s *stubParticipantRepo) SaveAll(context.Context, []*tournament.Participant) error { return nil }
func (s *stubParticipantRepo) DeleteAll(context.Context) error                          { return nil }
func (s *stubParticipantRepo) Count(context.Context) (int, error)                       { return len(s.participants), nil }

type memStandingsCache struct {
	rows []LeaderboardRowDTO
	hits int
}

func (c *memStandingsCache) GetStandings(context.Context) ([]LeaderboardRowDTO, bool) {
	if c.rows == nil {
		return nil, false
	}
	c.hits++
	return c.rows, true
}

func (c *memStandingsCache) SetStandings(_ context.Context, rows []LeaderboardRowDTO) error {
	c.rows = rows
	return nil
}

type stubHistoryRepo struct {
	snapshots []*tournament.Snapshot
}

func (s *stubHistoryRepo) SaveSnapshot(context.Context, *tournament.Snapshot) error { return nil }

func (s *stubHistoryRepo) FindSnapshots(context.Context, shared.Track) ([]*tournament.Snapshot, error) {
	return s.snapshots, nil
}

func (s *stubHistoryRepo) FindUnprocessed(context.Context, shared.Track) ([]*tournament.Snapshot, error) {
	return nil, nil
}

func (s *stubHistoryRepo) AnnotateElo(context.Context, string, map[shared.Position]int, *shared.PlayerKey, time.Time) error {
	return nil
}

func (s *stubHistoryRepo) ClearAnnotations(context.Context, shared.Track) error { return nil }

func TestGetLeaderboard(t *testing.T) {
	t0 := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	a, _ := tournament.NewParticipant(1, "a", "", 4500, t0)
	a.ObserveRating(4600)
	b, _ := tournament.NewParticipant(2, "b", "", 2000, t0)
	tournament.Reorder([]*tournament.Participant{a, b})
	repo := &stubParticipantRepo{participants: []*tournament.Participant{b, a}}
	cache := &memStandingsCache{}
	h := NewGetLeaderboardHandler(repo, cache)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.False(t, res.FromCache)
	assert.Equal(t, "a", res.Rows[0].Nickname)
	assert.Equal(t, 1, res.Rows[0].Position)
	assert.Equal(t, 500, res.Rows[0].Points)

	// Second read is served from the cache.
	res, err = h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, cache.hits)
}

func TestGetLeaderboard_Pagination(t *testing.T) {
	t0 := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	var participants []*tournament.Participant
	for i := int64(1); i <= 5; i++ {
		p, _ := tournament.NewParticipant(shared.OsuUserID(i), shared.Nickname("p"), "", 1000, t0.Add(time.Duration(i)*time.Minute))
		participants = append(participants, p)
	}
	tournament.Reorder(participants)
	h := NewGetLeaderboardHandler(&stubParticipantRepo{participants: participants}, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 4, res.Rows[0].Position)
}

func TestGetLeaderboard_ReadsStoredPositionsOnly(t *testing.T) {
	t0 := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	// b out-points a, but the stored ranking (assigned at the last write)
	// still has a first. The read renders the stored ranking untouched.
	a, _ := tournament.NewParticipant(1, "a", "", 4500, t0)
	a.Position = 1
	b, _ := tournament.NewParticipant(2, "b", "", 2000, t0)
	b.ObserveRating(2100)
	b.Position = 2
	repo := &stubParticipantRepo{participants: []*tournament.Participant{b, a}}
	h := NewGetLeaderboardHandler(repo, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []int{1, 2}, []int{res.Rows[0].Position, res.Rows[1].Position}, "rows come back in position order")
	assert.Equal(t, "a", res.Rows[0].Nickname)

	assert.Equal(t, shared.Position(1), a.Position, "read path never reassigns positions")
	assert.Equal(t, shared.Position(2), b.Position)
}

func TestGetHistory(t *testing.T) {
	t0 := time.Date(2025, 5, 4, 21, 0, 0, 0, time.UTC)
	winner := shared.PlayerKey("id:1")
	processed := t0.Add(time.Hour)
	elo := 1160
	old := &tournament.Snapshot{
		ID: "old", Track: shared.TrackWeekly, SnapshotAt: t0,
		WinnerKey: &winner, ProcessedAt: &processed,
		Entries: []*tournament.SnapshotEntry{
			{Position: 1, UserID: 1, Nickname: "a", Score: 100, EloAfter: &elo},
			{Position: 2, UserID: 2, Nickname: "b", Score: 50},
		},
	}
	recent := &tournament.Snapshot{
		ID: "recent", Track: shared.TrackWeekly, SnapshotAt: t0.AddDate(0, 0, 7),
		Entries: []*tournament.SnapshotEntry{
			{Position: 1, UserID: 2, Nickname: "b", Score: 10},
		},
	}
	h := NewGetHistoryHandler(&stubHistoryRepo{snapshots: []*tournament.Snapshot{old, recent}})

	res, err := h.Handle(context.Background(), GetHistoryQuery{})
	require.NoError(t, err)
	require.Len(t, res.Tournaments, 2)
	assert.Equal(t, "recent", res.Tournaments[0].SnapshotID, "newest first")
	assert.False(t, res.Tournaments[0].Reconciled)

	oldDTO := res.Tournaments[1]
	assert.True(t, oldDTO.Reconciled)
	assert.True(t, oldDTO.HasWinner)
	assert.True(t, oldDTO.Entries[0].IsWinner)
	assert.False(t, oldDTO.Entries[1].IsWinner)
	require.NotNil(t, oldDTO.Entries[0].EloAfter)
	assert.Equal(t, 1160, *oldDTO.Entries[0].EloAfter)
}

func TestGetHistory_UnknownTrack(t *testing.T) {
	h := NewGetHistoryHandler(&stubHistoryRepo{})
	_, err := h.Handle(context.Background(), GetHistoryQuery{Track: "monthly"})
	assert.ErrorIs(t, err, shared.ErrUnknownTrack)
}
