package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints_RegressionScoresNothing(t *testing.T) {
	cases := []struct {
		name  string
		start float64
		end   float64
	}{
		{"equal", 1500, 1500},
		{"regression", 2000, 1500},
		{"fractional same floor", 1500.2, 1500.9},
		{"zero", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, 0, Points(tc.start, tc.end))
		})
	}
}

func TestPoints_BracketPartition(t *testing.T) {
	// 500 units in bracket 0 (x1) + 500 units in bracket 1 (x2).
	assert.Equal(t, 1500, Points(500, 1500))

	// 1 unit in bracket 2 (x3) + 1 unit in bracket 3 (x4).
	assert.Equal(t, 7, Points(2999, 3001))

	// Entirely inside one bracket.
	assert.Equal(t, 300, Points(2000, 2100))

	// Gain spanning three brackets: [500,1000)x1 + [1000,2000)x2 + [2000,2500)x3.
	assert.Equal(t, 500+2000+1500, Points(500, 2500))
}

func TestPoints_FloorsBeforePartition(t *testing.T) {
	// Fractions are floored before the interval is partitioned, so these
	// must match their integer-floor equivalents exactly.
	assert.Equal(t, Points(500, 1500), Points(500.9, 1500.4))
	assert.Equal(t, Points(2999, 3001), Points(2999.99, 3001.01))
}

func TestPoints_NeverNegative(t *testing.T) {
	for start := 0.0; start < 5000; start += 137 {
		for end := 0.0; end < 5000; end += 251 {
			assert.GreaterOrEqual(t, Points(start, end), 0)
		}
	}
}

func TestPoints_MonotonicInEnd(t *testing.T) {
	prev := 0
	for end := 1000.0; end <= 4000; end += 100 {
		got := Points(1000, end)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}
