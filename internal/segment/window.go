/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package segment splits a worked interval at calendar-day boundaries
// and recurring premium-pay windows. The engine is pure: no I/O, no
// implicit "now" — callers resolve the interval before calling Split.
package segment

import "time"

// Window is a daily wall-clock interval carrying a pay coefficient.
// An End numerically earlier than Start means the window wraps local
// midnight (22:00-06:00 contributes a tail before midnight and a head
// after it).
type Window struct {
	Name        string
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
	Coefficient float64
}

// Wraps reports whether the window crosses local midnight. A window
// whose start and end coincide is treated as wrapping (covers the
// whole day).
func (w Window) Wraps() bool {
	return w.endMinutes() <= w.startMinutes()
}

func (w Window) startMinutes() int { return w.StartHour*60 + w.StartMinute }
func (w Window) endMinutes() int   { return w.EndHour*60 + w.EndMinute }

// DefaultWindows returns the built-in night-shift differential,
// 22:00-06:00 at 1.25x.
func DefaultWindows() []Window {
	return []Window{
		{
			Name:        "Night Shift",
			StartHour:   22,
			StartMinute: 0,
			EndHour:     6,
			EndMinute:   0,
			Coefficient: 1.25,
		},
	}
}

// occurrence is one concrete [Start, End) materialization of a window
// on a particular calendar day.
type occurrence struct {
	start       time.Time
	end         time.Time
	coefficient float64
	label       string
}

func (o occurrence) contains(t time.Time) bool {
	return !t.Before(o.start) && t.Before(o.end)
}
