package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/player"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ─────────────────────────────────────────────────────────────────────────────
// in-memory fakes
// ─────────────────────────────────────────────────────────────────────────────

type memHistoryRepo struct {
	snapshots []*tournament.Snapshot
}

func (m *memHistoryRepo) SaveSnapshot(_ context.Context, s *tournament.Snapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *memHistoryRepo) FindSnapshots(_ context.Context, track shared.Track) ([]*tournament.Snapshot, error) {
	var out []*tournament.Snapshot
	for _, s := range m.snapshots {
		if s.Track == track {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memHistoryRepo) FindUnprocessed(_ context.Context, track shared.Track) ([]*tournament.Snapshot, error) {
	var out []*tournament.Snapshot
	for _, s := range m.snapshots {
		if s.Track == track && !s.Processed() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memHistoryRepo) AnnotateElo(_ context.Context, snapshotID string, ratings map[shared.Position]int, winner *shared.PlayerKey, processedAt time.Time) error {
	for _, s := range m.snapshots {
		if s.ID != snapshotID {
			continue
		}
		for _, e := range s.Entries {
			if rating, ok := ratings[e.Position]; ok {
				r := rating
				e.EloAfter = &r
			}
		}
		s.WinnerKey = winner
		at := processedAt
		s.ProcessedAt = &at
		return nil
	}
	return shared.ErrSnapshotNotFound
}

func (m *memHistoryRepo) ClearAnnotations(_ context.Context, track shared.Track) error {
	for _, s := range m.snapshots {
		if s.Track != track {
			continue
		}
		for _, e := range s.Entries {
			e.EloAfter = nil
		}
		s.WinnerKey = nil
		s.ProcessedAt = nil
	}
	return nil
}

type memPlayerRepo struct {
	profiles map[shared.PlayerKey]*player.Profile
}

func newMemPlayerRepo() *memPlayerRepo {
	return &memPlayerRepo{profiles: make(map[shared.PlayerKey]*player.Profile)}
}

func (m *memPlayerRepo) FindByKey(_ context.Context, key shared.PlayerKey) (*player.Profile, error) {
	if p, ok := m.profiles[key]; ok {
		return p, nil
	}
	return nil, shared.ErrPlayerNotFound
}

func (m *memPlayerRepo) FindAll(_ context.Context) ([]*player.Profile, error) {
	out := make([]*player.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPlayerRepo) RatingTable(_ context.Context, track shared.Track) (player.RatingTable, error) {
	table := make(player.RatingTable, len(m.profiles))
	for key, p := range m.profiles {
		table[key] = p.Rating(track)
	}
	return table, nil
}

func (m *memPlayerRepo) Save(_ context.Context, p *player.Profile) error {
	m.profiles[p.Key] = p
	return nil
}

func (m *memPlayerRepo) SaveAll(ctx context.Context, ps []*player.Profile) error {
	for _, p := range ps {
		if err := m.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type stubPlayCounts struct {
	counts map[shared.OsuUserID]int
	err    error
}

func (s *stubPlayCounts) GetPlayCount(_ context.Context, userID shared.OsuUserID) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[userID], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func weeklySnapshot(id string, at time.Time, entries ...*tournament.SnapshotEntry) *tournament.Snapshot {
	return &tournament.Snapshot{ID: id, Track: shared.TrackWeekly, SnapshotAt: at, Entries: entries}
}

func poolSnapshot(id string, at time.Time, entries ...*tournament.SnapshotEntry) *tournament.Snapshot {
	return &tournament.Snapshot{ID: id, Track: shared.TrackPool, SnapshotAt: at, Entries: entries}
}

func entry(pos int, userID int64, nick string, ratingStart float64, score, playCount int) *tournament.SnapshotEntry {
	return &tournament.SnapshotEntry{
		Position:    shared.Position(pos),
		UserID:      shared.OsuUserID(userID),
		Nickname:    shared.Nickname(nick),
		RatingStart: shared.PP(ratingStart),
		RatingEnd:   shared.PP(ratingStart),
		Score:       score,
		PlayCount:   playCount,
	}
}

func snapshotState(h *memHistoryRepo) []tournament.Snapshot {
	out := make([]tournament.Snapshot, 0, len(h.snapshots))
	for _, s := range h.snapshots {
		out = append(out, *s)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRun_TwoParticipantEndToEnd(t *testing.T) {
	t0 := time.Date(2025, 6, 8, 21, 0, 0, 0, time.UTC)
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 1, "winner", 4500, 100, 50000),
			entry(2, 2, "runner", 4200, 50, 40000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SnapshotsProcessed)
	assert.Equal(t, 1, stats.WinnersCredited)

	a, err := players.FindByKey(context.Background(), "id:1")
	require.NoError(t, err)
	b, err := players.FindByKey(context.Background(), "id:2")
	require.NoError(t, err)

	// Both started at 1000: the winner rises, the loser falls, and the
	// deltas are symmetric within rounding tolerance.
	assert.Greater(t, a.Rating(shared.TrackWeekly), 1000)
	assert.Less(t, b.Rating(shared.TrackWeekly), 1000)
	gain := a.Rating(shared.TrackWeekly) - 1000
	loss := 1000 - b.Rating(shared.TrackWeekly)
	assert.InDelta(t, gain, loss, 1)

	assert.Equal(t, 1, a.TotalWins)
	assert.Equal(t, 0, b.TotalWins)
	assert.Equal(t, 1, a.TotalParticipations)
	assert.Equal(t, shared.Position(1), a.BestPosition)
	assert.Equal(t, 100, a.TotalPoints)
}

func TestRun_Idempotent(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 1, "a", 4500, 300, 50000),
			entry(2, 2, "b", 4100, 200, 45000),
			entry(3, 3, "c", 1000, 100, 9000),
		),
		weeklySnapshot("s2", t0.AddDate(0, 0, 7),
			entry(1, 2, "b", 4150, 400, 46000),
			entry(2, 1, "a", 4700, 250, 51000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	firstProfiles := make(map[shared.PlayerKey]player.Profile)
	for k, p := range players.profiles {
		clone := *p
		firstProfiles[k] = clone
	}
	firstSnapshots := snapshotState(history)

	// Second run over unchanged history: nothing to propagate, aggregates
	// recomputed to the exact same values.
	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.SnapshotsProcessed)

	for k, want := range firstProfiles {
		got := players.profiles[k]
		assert.Equal(t, want.TotalParticipations, got.TotalParticipations, "participations drifted for %s", k)
		assert.Equal(t, want.TotalWins, got.TotalWins, "wins drifted for %s", k)
		assert.Equal(t, want.TotalPoints, got.TotalPoints, "points drifted for %s", k)
		assert.Equal(t, want.BestPosition, got.BestPosition)
		assert.Equal(t, want.Ratings, got.Ratings, "ratings drifted for %s", k)
	}
	for i, want := range firstSnapshots {
		got := history.snapshots[i]
		for j, e := range want.Entries {
			require.NotNil(t, got.Entries[j].EloAfter)
			assert.Equal(t, *e.EloAfter, *got.Entries[j].EloAfter)
		}
	}
}

func TestRun_SnapshotOrderMatters(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	// Deliberately appended out of order; the reconciler must sort.
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("later", t0.AddDate(0, 0, 7),
			entry(1, 1, "a", 4500, 100, 50000),
			entry(2, 2, "b", 4100, 50, 45000),
		),
		weeklySnapshot("earlier", t0,
			entry(1, 1, "a", 4500, 100, 50000),
			entry(2, 2, "b", 4100, 50, 45000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	// After the first snapshot a is above b, so the second win must yield a
	// smaller gain than the first (expected score is higher). The final
	// rating therefore sits below two first-win gains from default.
	a := players.profiles["id:1"]
	firstGain := *history.snapshots[1].Entries[0].EloAfter - player.DefaultRating
	require.Positive(t, firstGain)
	assert.Less(t, a.Rating(shared.TrackWeekly), player.DefaultRating+2*firstGain)
	assert.Greater(t, a.Rating(shared.TrackWeekly), player.DefaultRating+firstGain)
}

func TestRun_NoQualifiedWinner(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 1, "smurf", 1500, 900, 100),
			entry(2, 2, "casual", 2000, 300, 20000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.WinnersCredited)
	assert.Nil(t, history.snapshots[0].WinnerKey)
	assert.Zero(t, players.profiles["id:1"].TotalWins)
	assert.Zero(t, players.profiles["id:2"].TotalWins)
}

func TestRun_SkipsUnresolvableEntries(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	ghost := &tournament.SnapshotEntry{Position: 2, Score: 50} // no id, no nickname
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 1, "a", 4500, 100, 50000),
			ghost,
			entry(3, 3, "c", 4000, 10, 35000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EntriesSkipped)
	assert.Nil(t, ghost.EloAfter, "unresolvable entry gets no annotation")
	assert.Len(t, players.profiles, 2)
}

func TestRun_NicknameFallbackIdentity(t *testing.T) {
	t0 := time.Date(2024, 1, 7, 21, 0, 0, 0, time.UTC)
	// Old snapshot without user ids, and no id ever recorded for these
	// nicknames elsewhere: the fallback profiles are all there is.
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("old", t0,
			&tournament.SnapshotEntry{Position: 1, Nickname: "Legacy", RatingStart: 4500, Score: 100, PlayCount: 50000},
			&tournament.SnapshotEntry{Position: 2, Nickname: "Other", RatingStart: 4000, Score: 50, PlayCount: 40000},
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FallbackMatches)

	legacy, err := players.FindByKey(context.Background(), "nick:legacy")
	require.NoError(t, err)
	assert.Equal(t, 1, legacy.TotalParticipations)
	assert.Equal(t, 1, legacy.TotalWins)
}

func TestRun_NicknameFallbackMergesWithKnownID(t *testing.T) {
	t0 := time.Date(2024, 1, 7, 21, 0, 0, 0, time.UTC)
	// The same human appears nickname-only in the old snapshot and with an
	// id in the newer one. Both appearances must land on one profile.
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("old", t0,
			&tournament.SnapshotEntry{Position: 1, Nickname: "Shavka", RatingStart: 4500, Score: 100, PlayCount: 50000},
			&tournament.SnapshotEntry{Position: 2, Nickname: "Other", RatingStart: 4000, Score: 50, PlayCount: 40000},
		),
		weeklySnapshot("new", t0.AddDate(0, 0, 7),
			entry(1, 777, "Shavka", 4550, 200, 51000),
			entry(2, 2, "Other", 4000, 50, 41000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	merged, err := players.FindByKey(context.Background(), "id:777")
	require.NoError(t, err)
	assert.Equal(t, 2, merged.TotalParticipations)
	assert.Equal(t, 2, merged.TotalWins)
	assert.Equal(t, 300, merged.TotalPoints)

	_, err = players.FindByKey(context.Background(), "nick:shavka")
	assert.ErrorIs(t, err, shared.ErrPlayerNotFound, "no split fallback profile")
}

func TestRun_PoolSnapshotsMovePoolRatings(t *testing.T) {
	t0 := time.Date(2025, 6, 8, 21, 0, 0, 0, time.UTC)
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		poolSnapshot("p1", t0,
			entry(1, 1, "grinder", 4500, 1_750_000, 50000),
			entry(2, 2, "sniper", 4200, 950_000, 40000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SnapshotsProcessed)
	assert.Zero(t, stats.WinnersCredited, "pool periods credit no tournament win")

	a := players.profiles["id:1"]
	b := players.profiles["id:2"]
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Greater(t, a.Rating(shared.TrackPool), player.DefaultRating)
	assert.Less(t, b.Rating(shared.TrackPool), player.DefaultRating)
	assert.Equal(t, player.DefaultRating, a.Rating(shared.TrackWeekly), "weekly track untouched")
}

func TestRun_SkipsAnnotatedSnapshotWithoutMarker(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	// Every entry already carries a rating annotation but the processed
	// marker write was lost: the sweep must not propagate a second time.
	elo1, elo2 := 1160, 840
	snap := weeklySnapshot("s1", t0,
		entry(1, 1, "a", 4500, 100, 50000),
		entry(2, 2, "b", 4100, 50, 45000),
	)
	snap.Entries[0].EloAfter = &elo1
	snap.Entries[1].EloAfter = &elo2
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{snap}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.SnapshotsProcessed)
	assert.Equal(t, 1, stats.SnapshotsSkipped)
	assert.Equal(t, 1160, *snap.Entries[0].EloAfter, "annotation untouched")
}

func TestRun_SubsetScopeDoesNotCorruptOthers(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 1, "a", 4500, 100, 50000),
			entry(2, 2, "b", 4100, 50, 45000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	// Full run first, then poison b's aggregates and re-run restricted to a.
	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	players.profiles["id:2"].TotalPoints = 424242
	_, err = r.Run(context.Background(), Scope{"id:1": true})
	require.NoError(t, err)

	assert.Equal(t, 100, players.profiles["id:1"].TotalPoints, "in-scope player recomputed")
	assert.Equal(t, 424242, players.profiles["id:2"].TotalPoints, "out-of-scope player untouched")
}

func TestRun_SuspectedBannedFlagged(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	// Play count missing and the live re-fetch fails: not qualified, flagged.
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 9, "banned", 6000, 500, 0),
			entry(2, 2, "b", 4100, 50, 45000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{err: errors.New("404")}, nil, DefaultConfig())

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SuspectedBanned)

	// Position 2 is the first qualified participant, so the win is theirs.
	require.NotNil(t, history.snapshots[0].WinnerKey)
	assert.Equal(t, shared.PlayerKey("id:2"), *history.snapshots[0].WinnerKey)
	assert.True(t, players.profiles["id:9"].SuspectedBanned)
}

func TestRebuild_ReplaysFromScratch(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	history := &memHistoryRepo{snapshots: []*tournament.Snapshot{
		weeklySnapshot("s1", t0,
			entry(1, 1, "a", 4500, 100, 50000),
			entry(2, 2, "b", 4100, 50, 45000),
		),
	}}
	players := newMemPlayerRepo()
	r := New(history, players, &stubPlayCounts{}, nil, DefaultConfig())

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	want := players.profiles["id:1"].Rating(shared.TrackWeekly)

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SnapshotsProcessed, "rebuild re-propagates cleared snapshots")
	assert.Equal(t, want, players.profiles["id:1"].Rating(shared.TrackWeekly), "replay reproduces the same ratings")
}
