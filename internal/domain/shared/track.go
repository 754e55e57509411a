package shared

// Track identifies an independent competition track. Each track keeps its own
// Elo-like rating per player and its own history snapshots.
type Track string

const (
	// TrackWeekly is the recurring PP-gain competition; the snapshot score is
	// the participant's competition points.
	TrackWeekly Track = "weekly"

	// TrackPool is the fixed map-pool competition; the snapshot score is the
	// cumulative pool score.
	TrackPool Track = "pool"
)

// IsValid checks that the track is one of the known tracks.
func (t Track) IsValid() bool {
	return t == TrackWeekly || t == TrackPool
}

// String returns the string representation.
func (t Track) String() string {
	return string(t)
}

// AllTracks lists every known track, in a stable order.
func AllTracks() []Track {
	return []Track{TrackWeekly, TrackPool}
}
