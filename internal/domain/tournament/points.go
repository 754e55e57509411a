package tournament

import "math"

// bracketWidth is the size of one rating bracket. Rating gained in the
// bracket [1000k, 1000(k+1)) is worth k+1 points per rating unit, so the
// same absolute gain is worth more for high-rated players.
const bracketWidth = 1000.0

// Points converts a start/end rating pair into competition points.
//
// The gain interval [floor(start), floor(end)) is partitioned into sub-intervals
// aligned to multiples of 1000; each contributes its length times the bracket
// multiplier. Regression or no change scores zero: points are never negative.
//
// Rounding mode is half-away-from-zero (math.Round) and must stay consistent
// with the Elo delta rounding in the player package.
//
// An older formula multiplied the whole diff by a single flat multiplier
// taken from the start bracket. That variant undervalues gains crossing a
// bracket boundary and is superseded by this piecewise version.
func Points(ratingStart, ratingEnd float64) int {
	start := math.Floor(ratingStart)
	end := math.Floor(ratingEnd)
	if end <= start || start < 0 {
		return 0
	}

	var sum float64
	firstBracket := int(start / bracketWidth)
	lastBracket := int((end - 1) / bracketWidth)
	for k := firstBracket; k <= lastBracket; k++ {
		lo := math.Max(start, float64(k)*bracketWidth)
		hi := math.Min(end, float64(k+1)*bracketWidth)
		if hi <= lo {
			continue
		}
		sum += (hi - lo) * float64(k+1)
	}

	return int(math.Round(sum))
}
