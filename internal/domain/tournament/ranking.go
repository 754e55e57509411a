package tournament

import (
	"sort"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// RankEntry is the minimal view of a standings row needed to assign positions.
type RankEntry struct {
	ID           shared.OsuUserID
	Points       shared.Points
	RegisteredAt time.Time
}

// Placement is the position assigned to one entry.
type Placement struct {
	ID       shared.OsuUserID
	Position shared.Position
}

// AssignPositions computes dense ranks 1..N over the given entries.
//
// Primary order: points descending. Secondary: registration timestamp
// ascending, so the earlier-committed player wins a points tie. The secondary
// key makes the order strict, so every entry receives a unique position;
// there is no shared-rank semantics. The user ID is a final determinism key
// for the degenerate case of identical timestamps.
func AssignPositions(entries []RankEntry) []Placement {
	sorted := make([]RankEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		if !sorted[i].RegisteredAt.Equal(sorted[j].RegisteredAt) {
			return sorted[i].RegisteredAt.Before(sorted[j].RegisteredAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	placements := make([]Placement, len(sorted))
	for i, e := range sorted {
		placements[i] = Placement{ID: e.ID, Position: shared.Position(i + 1)}
	}
	return placements
}

// Reorder applies AssignPositions to live participants in place and returns
// only the participants whose position actually changed. Callers persist just
// the returned subset to keep write amplification down.
func Reorder(participants []*Participant) []*Participant {
	entries := make([]RankEntry, len(participants))
	byID := make(map[shared.OsuUserID]*Participant, len(participants))
	for i, p := range participants {
		entries[i] = RankEntry{ID: p.UserID, Points: p.Points, RegisteredAt: p.RegisteredAt}
		byID[p.UserID] = p
	}

	var changed []*Participant
	for _, pl := range AssignPositions(entries) {
		p := byID[pl.ID]
		if p.Position != pl.Position {
			p.Position = pl.Position
			changed = append(changed, p)
		}
	}
	return changed
}
