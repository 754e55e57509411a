package player

import (
	"math"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAIRWISE ELO ENGINE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultRating is the starting rating of a never-before-seen player,
	// per track.
	DefaultRating = 1000

	// kFactor is the Elo K used for the pairwise comparison sum. The raw
	// per-pair sum is divided by N-1, so the effective swing of one
	// snapshot stays near a conventional K regardless of field size.
	kFactor = 320.0

	// ratingSpread is the classic 400-point spread: a player rated 400
	// above the opponent is expected to win ten times as often.
	ratingSpread = 400.0
)

// Standing is one participant of a snapshot as seen by the rating engine:
// a resolved identity and the tournament-specific score.
type Standing struct {
	Key   shared.PlayerKey
	Score int
}

// RatingTable maps resolved player identities to their current track rating.
// The propagation reads a frozen pre-snapshot table and never writes it.
type RatingTable map[shared.PlayerKey]int

// Rating returns the table entry or DefaultRating for an unseen player.
func (t RatingTable) Rating(key shared.PlayerKey) int {
	if r, ok := t[key]; ok {
		return r
	}
	return DefaultRating
}

// expectedScore is the probability that a beats b, on the standard
// Elo logistic curve.
func expectedScore(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/ratingSpread))
}

// actualScore compares two snapshot scores: 1 win, 0.5 draw, 0 loss.
func actualScore(scoreA, scoreB int) float64 {
	switch {
	case scoreA > scoreB:
		return 1.0
	case scoreA == scoreB:
		return 0.5
	default:
		return 0.0
	}
}

// PropagateRatings computes the post-snapshot ratings for every standing,
// as a pure function of (standings, table).
//
// Every pairwise comparison uses the frozen pre-snapshot table: a rating
// updated by this snapshot never leaks into another pair of the same
// snapshot. For N=1 the rating is unchanged (no opponent, and no division
// by zero). The result must be committed atomically by the caller and only
// then becomes the baseline of the next chronological snapshot.
//
// Rounding is half-away-from-zero, consistent with the points formula.
// For fixed inputs the result is bit-identical across runs: iteration
// follows the slice order and float accumulation order is fixed.
func PropagateRatings(standings []Standing, table RatingTable) map[shared.PlayerKey]int {
	updated := make(map[shared.PlayerKey]int, len(standings))
	n := len(standings)
	if n == 0 {
		return updated
	}
	if n == 1 {
		updated[standings[0].Key] = table.Rating(standings[0].Key)
		return updated
	}

	for i, a := range standings {
		oldRating := table.Rating(a.Key)

		var sum float64
		for j, b := range standings {
			if i == j {
				continue
			}
			s := actualScore(a.Score, b.Score)
			e := expectedScore(oldRating, table.Rating(b.Key))
			sum += s - e
		}

		delta := kFactor * sum / float64(n-1)
		updated[a.Key] = int(math.Round(float64(oldRating) + delta))
	}

	return updated
}
