/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package segment

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/vakt/internal/clock"
)

// ErrInvalidInterval is returned when Split is called with end <= start.
// The engine never swaps or clamps a bad interval.
var ErrInvalidInterval = errors.New("segment: interval end must be after start")

// Segment is a half-open [Start, End) slice of a worked interval.
type Segment struct {
	Start       time.Time
	End         time.Time
	Coefficient float64
	Day         int // 1-based calendar-day ordinal relative to the interval start
	Label       string
}

// Duration returns End - Start.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// TimeRange renders the segment bounds for persisted notes,
// e.g. "20:00 - 22:00".
func (s Segment) TimeRange() string {
	return fmt.Sprintf("%s - %s", s.Start.Format("15:04"), s.End.Format("15:04"))
}

// Split cuts [start, end) at every local midnight strictly between the
// bounds, then overlays each day piece with the premium windows.
// Output is sorted, pairwise disjoint, and tiles [start, end) exactly.
// An instant at a cut belongs to the segment starting there.
//
// When windows overlap, later entries in the slice take priority.
func Split(loc *time.Location, start, end time.Time, base float64, windows []Window) ([]Segment, error) {
	if loc == nil {
		loc = time.Local
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	start = start.In(loc)
	end = end.In(loc)

	var out []Segment
	for _, day := range splitDays(loc, start, end) {
		out = append(out, overlayWindows(loc, day, base, windows)...)
	}
	return out, nil
}

// daySpan is one calendar day's slice of the interval.
type daySpan struct {
	start   time.Time
	end     time.Time
	ordinal int
}

func splitDays(loc *time.Location, start, end time.Time) []daySpan {
	var days []daySpan
	cur := start
	for {
		ordinal := clock.DayOrdinal(start, cur, loc)
		next := clock.NextMidnight(cur, loc)
		if next.Before(end) {
			days = append(days, daySpan{start: cur, end: next, ordinal: ordinal})
			cur = next
			continue
		}
		days = append(days, daySpan{start: cur, end: end, ordinal: ordinal})
		return days
	}
}

// overlayWindows intersects one day span with every premium occurrence
// on that day and emits the ordered base/premium parts.
func overlayWindows(loc *time.Location, day daySpan, base float64, windows []Window) []Segment {
	occs := occurrencesFor(loc, day, windows)

	// Cut points: the day bounds plus every occurrence bound inside them.
	cuts := []time.Time{day.start, day.end}
	for _, occ := range occs {
		for _, t := range []time.Time{occ.start, occ.end} {
			if t.After(day.start) && t.Before(day.end) {
				cuts = append(cuts, t)
			}
		}
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })

	dayLabel := fmt.Sprintf("Day %d", day.ordinal)

	var parts []Segment
	for i := 0; i+1 < len(cuts); i++ {
		lo, hi := cuts[i], cuts[i+1]
		if !hi.After(lo) {
			continue
		}
		seg := Segment{
			Start:       lo,
			End:         hi,
			Coefficient: base,
			Day:         day.ordinal,
			Label:       dayLabel,
		}
		// Later windows win on overlap, so scan back to front.
		for j := len(occs) - 1; j >= 0; j-- {
			if occs[j].contains(lo) {
				seg.Coefficient = occs[j].coefficient
				seg.Label = occs[j].label
				break
			}
		}
		parts = append(parts, seg)
	}

	return mergeAdjacent(parts)
}

// occurrencesFor materializes each window's occurrence(s) on the day
// containing the span. A wrapping window yields a head after local
// midnight and a tail before the next one; each is evaluated against
// the span bounds later, via the cut-point intersection.
func occurrencesFor(loc *time.Location, day daySpan, windows []Window) []occurrence {
	dayStart := clock.StartOfDay(day.start, loc)
	dayEnd := clock.NextMidnight(day.start, loc)

	var occs []occurrence
	for _, w := range windows {
		ws := clock.At(day.start, w.StartHour, w.StartMinute, loc)
		we := clock.At(day.start, w.EndHour, w.EndMinute, loc)
		if w.Wraps() {
			occs = append(occs,
				occurrence{start: dayStart, end: we, coefficient: w.Coefficient, label: w.Name},
				occurrence{start: ws, end: dayEnd, coefficient: w.Coefficient, label: w.Name},
			)
			continue
		}
		occs = append(occs, occurrence{start: ws, end: we, coefficient: w.Coefficient, label: w.Name})
	}

	// Drop occurrences with no overlap to keep cut points minimal.
	filtered := occs[:0]
	for _, occ := range occs {
		if occ.end.After(day.start) && occ.start.Before(day.end) && occ.end.After(occ.start) {
			filtered = append(filtered, occ)
		}
	}
	return filtered
}

// mergeAdjacent collapses touching parts with the same coefficient and
// label. Overlapping windows sharing a coefficient would otherwise
// leave cosmetic seams.
func mergeAdjacent(parts []Segment) []Segment {
	if len(parts) < 2 {
		return parts
	}
	merged := parts[:1]
	for _, p := range parts[1:] {
		last := &merged[len(merged)-1]
		if p.Start.Equal(last.End) && p.Coefficient == last.Coefficient && p.Label == last.Label {
			last.End = p.End
			continue
		}
		merged = append(merged, p)
	}
	return merged
}
