package tournament

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotEntry is one frozen participant record inside a history snapshot.
// Immutable once written, except for the EloAfter annotation added by the
// rating propagation during reconciliation.
type SnapshotEntry struct {
	// Position is the final dense rank at close time (1 = best).
	Position shared.Position

	// UserID may be zero in old entries recorded before IDs were stored;
	// Nickname is the fallback identity in that case.
	UserID    shared.OsuUserID
	Nickname  shared.Nickname
	AvatarURL string

	// RatingStart/RatingEnd are the period's PP boundaries.
	RatingStart shared.PP
	RatingEnd   shared.PP

	// Score is the tournament-specific metric: competition points on the
	// weekly track, cumulative pool score on the pool track.
	Score int

	// PlayCount as observed at close time. Zero in old entries that predate
	// play-count recording; the eligibility filter re-fetches it live then.
	PlayCount int

	// EloAfter is the player's track rating after this snapshot was
	// propagated. Nil until reconciliation annotates the entry.
	EloAfter *int
}

// Key resolves the entry's player identity. See shared.ResolvePlayerKey.
func (e *SnapshotEntry) Key() (shared.PlayerKey, bool, error) {
	return shared.ResolvePlayerKey(e.UserID, e.Nickname)
}

// Snapshot is one tournament's final participant list, written to history at
// period close. Snapshots are totally ordered by SnapshotAt and must be
// reconciled in that order: rating propagation is order-dependent.
type Snapshot struct {
	// ID is the snapshot's UUID.
	ID string

	// Track the snapshot belongs to.
	Track shared.Track

	// SnapshotAt is the close timestamp; the total order key.
	SnapshotAt time.Time

	// Entries are the frozen records, sorted by Position ascending.
	Entries []*SnapshotEntry

	// WinnerKey is the resolved identity of the first qualified participant
	// in position order, recorded once during reconciliation. Nil when no
	// participant qualified: the tournament then has no winner.
	WinnerKey *shared.PlayerKey

	// ProcessedAt is the durable reconciliation marker. A snapshot with
	// ProcessedAt set is never propagated again, so re-running the sweep
	// cannot double-apply rating deltas.
	ProcessedAt *time.Time
}

// snapshotNamespace seeds deterministic snapshot IDs.
var snapshotNamespace = uuid.MustParse("b6d0f9a4-3c71-4c2e-8e5a-7d94c1f0b2a6")

// SnapshotID derives the snapshot ID from its natural identity: the track
// and the close timestamp. Closing the same period twice yields the same ID,
// so a retried close lands on the already written row instead of persisting
// the standings a second time.
func SnapshotID(track shared.Track, closedAt time.Time) string {
	name := track.String() + "|" + closedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(snapshotNamespace, []byte(name)).String()
}

// NewSnapshot freezes the given live participants into a weekly-track
// snapshot. Entries are ordered by position; participants without an assigned
// position are ranked last, after a defensive reorder.
func NewSnapshot(participants []*Participant, playCounts map[shared.OsuUserID]int, closedAt time.Time) *Snapshot {
	entries := make([]*SnapshotEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, &SnapshotEntry{
			Position:    p.Position,
			UserID:      p.UserID,
			Nickname:    p.Nickname,
			AvatarURL:   p.AvatarURL,
			RatingStart: p.RatingStart,
			RatingEnd:   p.RatingEnd,
			Score:       p.Points.Int(),
			PlayCount:   playCounts[p.UserID],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position < entries[j].Position
	})

	return &Snapshot{
		ID:         SnapshotID(shared.TrackWeekly, closedAt),
		Track:      shared.TrackWeekly,
		SnapshotAt: closedAt.UTC(),
		Entries:    entries,
	}
}

// NewPoolSnapshot freezes ranked pool standings into a pool-track snapshot.
// The caller supplies entries already carrying dense positions; they are
// re-sorted defensively the same way weekly entries are.
func NewPoolSnapshot(entries []*SnapshotEntry, closedAt time.Time) *Snapshot {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position < entries[j].Position
	})
	return &Snapshot{
		ID:         SnapshotID(shared.TrackPool, closedAt),
		Track:      shared.TrackPool,
		SnapshotAt: closedAt.UTC(),
		Entries:    entries,
	}
}

// Processed reports whether the snapshot carries the reconciliation marker.
func (s *Snapshot) Processed() bool {
	return s.ProcessedAt != nil
}

// FullyAnnotated reports whether every entry carries an EloAfter annotation.
// Used as a secondary idempotency check besides ProcessedAt.
func (s *Snapshot) FullyAnnotated() bool {
	if len(s.Entries) == 0 {
		return false
	}
	for _, e := range s.Entries {
		if e.EloAfter == nil {
			return false
		}
	}
	return true
}

// SortSnapshots orders snapshots chronologically in place.
// Reconciliation depends on this order.
func SortSnapshots(snapshots []*Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].SnapshotAt.Before(snapshots[j].SnapshotAt)
	})
}
