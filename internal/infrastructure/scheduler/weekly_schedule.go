package scheduler

import (
	"fmt"
	"time"
)

// WeeklySchedule fires once a week at a fixed weekday and time of day.
// Used for the tournament close: the period boundary is a wall-clock
// moment, not an interval from process start.
type WeeklySchedule struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// NewWeeklySchedule creates a schedule firing at the given weekday and
// time of day in the given location (UTC when nil).
func NewWeeklySchedule(weekday time.Weekday, hour, minute int, loc *time.Location) *WeeklySchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklySchedule{
		Weekday:  weekday,
		Hour:     hour,
		Minute:   minute,
		Location: loc,
	}
}

// Next returns the next occurrence strictly after t.
func (s *WeeklySchedule) Next(t time.Time) time.Time {
	t = t.In(s.Location)

	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	daysAhead := (int(s.Weekday) - int(t.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)

	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Previous returns the latest occurrence at or before t: the boundary of the
// period that just ended. Closes are stamped with this boundary rather than
// the wall clock, so a retried close carries the same period identity.
func (s *WeeklySchedule) Previous(t time.Time) time.Time {
	return s.Next(t).AddDate(0, 0, -7)
}

// String returns the string representation of the schedule.
func (s *WeeklySchedule) String() string {
	return fmt.Sprintf("@weekly %s %02d:%02d %s", s.Weekday, s.Hour, s.Minute, s.Location)
}
