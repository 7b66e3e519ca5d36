package model

import (
	"fmt"
	"time"
)

const MinutesPerDay = 24 * 60

// Slot is an administrator-defined candidate appointment window. Date carries
// no time of day; StartMinute/EndMinute are minutes since local midnight.
type Slot struct {
	ID          string
	Date        time.Time
	StartMinute int
	EndMinute   int
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Start combines the slot date with its start time of day in loc.
func (s Slot) Start(loc *time.Location) time.Time {
	return AtMinute(s.Date, s.StartMinute, loc)
}

func (s Slot) End(loc *time.Location) time.Time {
	return AtMinute(s.Date, s.EndMinute, loc)
}

// AtMinute returns the wall-clock instant minute minutes after midnight of day in loc.
func AtMinute(day time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
}

// DateOnly strips the time of day, keeping the calendar date as written.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, raw, time.UTC)
}

// ParseClock parses "HH:MM" (24h) into minutes since midnight. "24:00" is
// accepted as the end of day.
func ParseClock(raw string) (int, error) {
	if raw == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ValidWindow reports whether start/end form a non-empty window within one day.
func ValidWindow(startMinute, endMinute int) bool {
	return startMinute >= 0 && endMinute <= MinutesPerDay && startMinute < endMinute
}
