package player

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// fakePlayCountSource counts calls so memoization is observable.
type fakePlayCountSource struct {
	counts map[shared.OsuUserID]int
	errs   map[shared.OsuUserID]error
	calls  int
}

func (f *fakePlayCountSource) GetPlayCount(_ context.Context, userID shared.OsuUserID) (int, error) {
	f.calls++
	if err, ok := f.errs[userID]; ok {
		return 0, err
	}
	return f.counts[userID], nil
}

func TestEligibilityFilter_Thresholds(t *testing.T) {
	f := NewEligibilityFilter(DefaultEligibilityConfig(), &fakePlayCountSource{}, nil)
	ctx := context.Background()

	assert.True(t, f.Qualified(ctx, Contender{UserID: 1, RatingStart: 5000, PlayCount: 40000}))
	assert.False(t, f.Qualified(ctx, Contender{UserID: 2, RatingStart: 3999, PlayCount: 40000}), "below rating floor")
	assert.False(t, f.Qualified(ctx, Contender{UserID: 3, RatingStart: 5000, PlayCount: 29999}), "below play-count floor")
}

func TestEligibilityFilter_LiveRefetchFallback(t *testing.T) {
	source := &fakePlayCountSource{counts: map[shared.OsuUserID]int{7: 45000}}
	f := NewEligibilityFilter(DefaultEligibilityConfig(), source, nil)

	// Play count missing from the old snapshot entry: re-fetched live.
	assert.True(t, f.Qualified(context.Background(), Contender{UserID: 7, RatingStart: 4500, PlayCount: 0}))
	assert.Equal(t, 1, source.calls)

	// Second check for the same user hits the memoization cache.
	assert.True(t, f.Qualified(context.Background(), Contender{UserID: 7, RatingStart: 4500, PlayCount: 0}))
	assert.Equal(t, 1, source.calls)
}

func TestEligibilityFilter_FailedFetchIsSuspectedBanned(t *testing.T) {
	source := &fakePlayCountSource{errs: map[shared.OsuUserID]error{9: errors.New("404 user not found")}}
	f := NewEligibilityFilter(DefaultEligibilityConfig(), source, nil)

	assert.False(t, f.Qualified(context.Background(), Contender{UserID: 9, RatingStart: 6000, PlayCount: 0}))

	banned := f.SuspectedBanned()
	require.Len(t, banned, 1)
	assert.Equal(t, shared.OsuUserID(9), banned[0])

	// The failure is memoized too; no second call.
	f.Qualified(context.Background(), Contender{UserID: 9, RatingStart: 6000, PlayCount: 0})
	assert.Equal(t, 1, source.calls)
}

func TestEligibilityFilter_NoRefetchWithoutRating(t *testing.T) {
	source := &fakePlayCountSource{}
	f := NewEligibilityFilter(DefaultEligibilityConfig(), source, nil)

	// rating_start == 0 means the entry is junk; never spend an API call.
	assert.False(t, f.Qualified(context.Background(), Contender{UserID: 5, RatingStart: 0, PlayCount: 0}))
	assert.Equal(t, 0, source.calls)
}

func TestEligibilityFilter_Winner(t *testing.T) {
	source := &fakePlayCountSource{}
	f := NewEligibilityFilter(DefaultEligibilityConfig(), source, nil)
	ctx := context.Background()

	contenders := []Contender{
		{UserID: 1, Position: 1, RatingStart: 2000, PlayCount: 50000}, // below rating floor
		{UserID: 2, Position: 2, RatingStart: 4200, PlayCount: 1000},  // below play-count floor
		{UserID: 3, Position: 3, RatingStart: 4800, PlayCount: 35000}, // first qualified
		{UserID: 4, Position: 4, RatingStart: 5000, PlayCount: 60000},
	}

	winner, ok := f.Winner(ctx, contenders)
	require.True(t, ok)
	assert.Equal(t, shared.OsuUserID(3), winner.UserID)
}

func TestEligibilityFilter_NoWinner(t *testing.T) {
	f := NewEligibilityFilter(DefaultEligibilityConfig(), &fakePlayCountSource{}, nil)

	_, ok := f.Winner(context.Background(), []Contender{
		{UserID: 1, Position: 1, RatingStart: 100, PlayCount: 10},
	})
	assert.False(t, ok)
}
