package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(5*time.Minute), s.Next(now))
	assert.Equal(t, "@every 5m0s", s.String())
}

func TestWeeklySchedule_Next(t *testing.T) {
	// Sunday 20:00 UTC close.
	s := NewWeeklySchedule(time.Sunday, 20, 0, time.UTC)

	// Wednesday -> upcoming Sunday.
	wed := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)
	require.Equal(t, time.Wednesday, wed.Weekday())
	next := s.Next(wed)
	assert.Equal(t, time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC), next)

	// Sunday before close time -> same day.
	sunMorning := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC), s.Next(sunMorning))

	// Exactly at close time -> next week, never the same instant.
	atClose := time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 23, 20, 0, 0, 0, time.UTC), s.Next(atClose))

	// After close time -> next week.
	sunEvening := time.Date(2025, 3, 16, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 23, 20, 0, 0, 0, time.UTC), s.Next(sunEvening))
}

func TestWeeklySchedule_Previous(t *testing.T) {
	s := NewWeeklySchedule(time.Sunday, 20, 0, time.UTC)

	// A minute after the boundary: still the same period's boundary.
	justAfter := time.Date(2025, 3, 16, 20, 1, 0, 0, time.UTC)
	boundary := time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, boundary, s.Previous(justAfter))

	// A delayed retry hours later still resolves to the same boundary.
	assert.Equal(t, boundary, s.Previous(justAfter.Add(5*time.Hour)))

	// Exactly at the boundary: the boundary itself.
	assert.Equal(t, boundary, s.Previous(boundary))

	// Before the boundary: the previous week's.
	assert.Equal(t, boundary.AddDate(0, 0, -7), s.Previous(boundary.Add(-time.Minute)))
}

func TestWeeklySchedule_AlwaysAdvances(t *testing.T) {
	s := NewWeeklySchedule(time.Monday, 0, 0, time.UTC)

	cursor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		next := s.Next(cursor)
		require.True(t, next.After(cursor))
		assert.Equal(t, time.Monday, next.Weekday())
		cursor = next
	}
}
