package models

import "time"

// NormalizeDate parses an upstream ISO8601 UTC timestamp. Deadlines set
// before 08:00 are administrative midnight-ish times for work assigned the
// previous school day, so they are pulled back eight hours to land on the
// previous calendar day.
func NormalizeDate(value string) (time.Time, error) {
	date, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}

	if date.Hour() < 8 {
		date = date.Add(-8 * time.Hour)
	}

	return date.UTC(), nil
}

// calendarDay collapses a timestamp to its own calendar date, ignoring zone
// conversion: day comparisons are made against the date components the
// timestamp already carries.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return calendarDay(a).Equal(calendarDay(b))
}

// OnOrBefore reports whether a's calendar day is b's day or earlier.
func OnOrBefore(a, b time.Time) bool {
	return !calendarDay(a).After(calendarDay(b))
}
