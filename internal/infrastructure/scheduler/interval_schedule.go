package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires at a fixed interval from the previous run. The
// leaderboard refresh, the pool sweep and the reconciliation sweep all ride
// it; only the tournament close needs the wall-clock WeeklySchedule.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a schedule firing every interval.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next occurrence: one interval after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
