/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import "time"

// StartOfDay returns local midnight of the day containing t, in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the first local midnight strictly after t.
// Uses AddDate so DST transition days keep a well-defined boundary.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}

// At returns the instant at hour:minute on the calendar day containing day.
func At(day time.Time, hour, minute int, loc *time.Location) time.Time {
	day = day.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

// DayOrdinal returns the 1-based calendar-day index of t relative to
// the day containing origin. Same day yields 1.
func DayOrdinal(origin, t time.Time, loc *time.Location) int {
	start := StartOfDay(origin, loc)
	day := StartOfDay(t, loc)
	ordinal := 1
	for day.After(start) {
		start = start.AddDate(0, 0, 1)
		ordinal++
	}
	return ordinal
}
