/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package segment

import (
	"errors"
	"testing"
	"time"
)

func date(t *testing.T, y int, mo time.Month, d, h, min int) time.Time {
	t.Helper()
	return time.Date(y, mo, d, h, min, 0, 0, time.UTC)
}

// checkTiling asserts segments are sorted, disjoint, and exactly cover
// [start, end).
func checkTiling(t *testing.T, segs []Segment, start, end time.Time) {
	t.Helper()
	if len(segs) == 0 {
		t.Fatal("no segments produced")
	}
	if !segs[0].Start.Equal(start) {
		t.Errorf("first segment starts at %v, want %v", segs[0].Start, start)
	}
	if !segs[len(segs)-1].End.Equal(end) {
		t.Errorf("last segment ends at %v, want %v", segs[len(segs)-1].End, end)
	}
	for i, s := range segs {
		if !s.End.After(s.Start) {
			t.Errorf("segment %d is empty or inverted: [%v, %v)", i, s.Start, s.End)
		}
		if s.Coefficient < 0 {
			t.Errorf("segment %d has negative coefficient %v", i, s.Coefficient)
		}
		if i > 0 && !segs[i-1].End.Equal(s.Start) {
			t.Errorf("gap or overlap between segment %d and %d: %v vs %v", i-1, i, segs[i-1].End, s.Start)
		}
	}

	var total time.Duration
	for _, s := range segs {
		total += s.Duration()
	}
	if want := end.Sub(start); total != want {
		t.Errorf("total duration %v, want %v", total, want)
	}
}

func TestSplitRejectsInvalidInterval(t *testing.T) {
	start := date(t, 2024, 1, 10, 8, 0)

	for _, end := range []time.Time{start, start.Add(-time.Hour)} {
		_, err := Split(time.UTC, start, end, 1, DefaultWindows())
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Split(end=%v) error = %v, want ErrInvalidInterval", end, err)
		}
	}
}

func TestSplitSameDayNoWindow(t *testing.T) {
	start := date(t, 2024, 1, 10, 8, 0)
	end := date(t, 2024, 1, 10, 17, 0)

	segs, err := Split(time.UTC, start, end, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	checkTiling(t, segs, start, end)

	s := segs[0]
	if s.Coefficient != 1 || s.Day != 1 || s.Label != "Day 1" {
		t.Errorf("segment = %+v, want coefficient 1, day 1, label Day 1", s)
	}
	if s.Duration() != 9*time.Hour {
		t.Errorf("duration = %v, want 9h", s.Duration())
	}
}

func TestSplitNightShiftAcrossMidnight(t *testing.T) {
	// 20:00 to 04:00 next day with the 22:00-06:00 @1.25 window.
	start := date(t, 2024, 1, 10, 20, 0)
	end := date(t, 2024, 1, 11, 4, 0)

	segs, err := Split(time.UTC, start, end, 1, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)

	want := []struct {
		start, end  time.Time
		coefficient float64
		day         int
		label       string
	}{
		{date(t, 2024, 1, 10, 20, 0), date(t, 2024, 1, 10, 22, 0), 1, 1, "Day 1"},
		{date(t, 2024, 1, 10, 22, 0), date(t, 2024, 1, 11, 0, 0), 1.25, 1, "Night Shift"},
		{date(t, 2024, 1, 11, 0, 0), date(t, 2024, 1, 11, 4, 0), 1.25, 2, "Night Shift"},
	}

	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i, w := range want {
		s := segs[i]
		if !s.Start.Equal(w.start) || !s.End.Equal(w.end) || s.Coefficient != w.coefficient || s.Day != w.day || s.Label != w.label {
			t.Errorf("segment %d = %+v, want %+v", i, s, w)
		}
	}
}

func TestSplitThreeCalendarDays(t *testing.T) {
	// 23:30 Jan 10 to 01:00 Jan 12 spans three calendar days; the full
	// output must conserve the 25.5h duration through both phases.
	start := date(t, 2024, 1, 10, 23, 30)
	end := date(t, 2024, 1, 12, 1, 0)

	segs, err := Split(time.UTC, start, end, 1, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)

	days := map[int]bool{}
	for _, s := range segs {
		days[s.Day] = true
	}
	for d := 1; d <= 3; d++ {
		if !days[d] {
			t.Errorf("no segment carries day ordinal %d", d)
		}
	}

	// The middle day must split into night head, daytime, night tail.
	var middle []Segment
	for _, s := range segs {
		if s.Day == 2 {
			middle = append(middle, s)
		}
	}
	if len(middle) != 3 {
		t.Fatalf("day 2 has %d segments, want 3: %+v", len(middle), middle)
	}
	if middle[0].Coefficient != 1.25 || middle[1].Coefficient != 1 || middle[2].Coefficient != 1.25 {
		t.Errorf("day 2 coefficients = %v %v %v, want 1.25 1 1.25",
			middle[0].Coefficient, middle[1].Coefficient, middle[2].Coefficient)
	}
}

func TestSplitEntirelyInsideNightWindow(t *testing.T) {
	start := date(t, 2024, 1, 10, 23, 0)
	end := date(t, 2024, 1, 10, 23, 45)

	segs, err := Split(time.UTC, start, end, 1, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Coefficient != 1.25 || segs[0].Label != "Night Shift" {
		t.Errorf("segment = %+v, want 1.25 Night Shift", segs[0])
	}
}

func TestSplitEndingExactlyAtMidnight(t *testing.T) {
	// Midnight at the interval end is not strictly inside, so no
	// day-2 segment appears.
	start := date(t, 2024, 1, 10, 21, 0)
	end := date(t, 2024, 1, 11, 0, 0)

	segs, err := Split(time.UTC, start, end, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1: %+v", len(segs), segs)
	}
	if segs[0].Day != 1 {
		t.Errorf("day = %d, want 1", segs[0].Day)
	}
}

func TestSplitBoundaryBelongsToStartingSegment(t *testing.T) {
	// An instant at 22:00 belongs to the premium segment, not the one
	// ending there.
	start := date(t, 2024, 1, 10, 20, 0)
	end := date(t, 2024, 1, 10, 23, 0)

	segs, err := Split(time.UTC, start, end, 1, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	cut := date(t, 2024, 1, 10, 22, 0)
	if !segs[0].End.Equal(cut) || !segs[1].Start.Equal(cut) {
		t.Errorf("cut at %v not shared: %+v", cut, segs)
	}
	if segs[1].Coefficient != 1.25 {
		t.Errorf("segment starting at cut has coefficient %v, want 1.25", segs[1].Coefficient)
	}
}

func TestSplitNonWrappingWindow(t *testing.T) {
	windows := []Window{{
		Name:        "Lunch Rush",
		StartHour:   11,
		StartMinute: 30,
		EndHour:     13,
		EndMinute:   30,
		Coefficient: 1.1,
	}}

	start := date(t, 2024, 1, 10, 9, 0)
	end := date(t, 2024, 1, 10, 17, 0)

	segs, err := Split(time.UTC, start, end, 1, windows)
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(segs), segs)
	}
	if segs[0].Coefficient != 1 || segs[1].Coefficient != 1.1 || segs[2].Coefficient != 1 {
		t.Errorf("coefficients = %v %v %v, want 1 1.1 1", segs[0].Coefficient, segs[1].Coefficient, segs[2].Coefficient)
	}
	if segs[1].Label != "Lunch Rush" {
		t.Errorf("premium label = %q, want Lunch Rush", segs[1].Label)
	}
}

func TestSplitLaterWindowWinsOnOverlap(t *testing.T) {
	windows := []Window{
		{Name: "Evening", StartHour: 18, EndHour: 23, Coefficient: 1.1},
		{Name: "Peak", StartHour: 20, EndHour: 21, Coefficient: 2},
	}

	start := date(t, 2024, 1, 10, 17, 0)
	end := date(t, 2024, 1, 10, 23, 0)

	segs, err := Split(time.UTC, start, end, 1, windows)
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)

	want := []struct {
		coefficient float64
		label       string
	}{
		{1, "Day 1"},
		{1.1, "Evening"},
		{2, "Peak"},
		{1.1, "Evening"},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i, w := range want {
		if segs[i].Coefficient != w.coefficient || segs[i].Label != w.label {
			t.Errorf("segment %d = %v %q, want %v %q", i, segs[i].Coefficient, segs[i].Label, w.coefficient, w.label)
		}
	}
}

func TestSplitWrapWindowNeverNegativeOccurrence(t *testing.T) {
	// Sweep a 30-day span of shift starts against the wrap window and
	// verify tiling holds everywhere.
	windows := DefaultWindows()
	for day := 1; day <= 30; day++ {
		for hour := 0; hour < 24; hour += 3 {
			start := date(t, 2024, 1, day, hour, 15)
			end := start.Add(10*time.Hour + 17*time.Minute)

			segs, err := Split(time.UTC, start, end, 1, windows)
			if err != nil {
				t.Fatalf("Split(%v): %v", start, err)
			}
			checkTiling(t, segs, start, end)
		}
	}
}

func TestSplitPremiumContainment(t *testing.T) {
	// Probe instants across a two-day shift: inside the window the
	// coefficient must be the window's, outside it the base.
	start := date(t, 2024, 1, 10, 12, 0)
	end := date(t, 2024, 1, 11, 12, 0)

	segs, err := Split(time.UTC, start, end, 1, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	checkTiling(t, segs, start, end)

	coefficientAt := func(at time.Time) float64 {
		for _, s := range segs {
			if !at.Before(s.Start) && at.Before(s.End) {
				return s.Coefficient
			}
		}
		t.Fatalf("no segment contains %v", at)
		return 0
	}

	probes := []struct {
		at   time.Time
		want float64
	}{
		{date(t, 2024, 1, 10, 12, 0), 1},
		{date(t, 2024, 1, 10, 21, 59), 1},
		{date(t, 2024, 1, 10, 22, 0), 1.25},
		{date(t, 2024, 1, 10, 23, 30), 1.25},
		{date(t, 2024, 1, 11, 0, 0), 1.25},
		{date(t, 2024, 1, 11, 5, 59), 1.25},
		{date(t, 2024, 1, 11, 6, 0), 1},
		{date(t, 2024, 1, 11, 11, 59), 1},
	}
	for _, p := range probes {
		if got := coefficientAt(p.at); got != p.want {
			t.Errorf("coefficient at %v = %v, want %v", p.at, got, p.want)
		}
	}
}

func TestSplitBaseCoefficientCarries(t *testing.T) {
	// An overtime interval keeps its own base outside the window.
	start := date(t, 2024, 1, 10, 20, 0)
	end := date(t, 2024, 1, 10, 23, 0)

	segs, err := Split(time.UTC, start, end, 1.5, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	if segs[0].Coefficient != 1.5 {
		t.Errorf("pre-premium coefficient = %v, want 1.5", segs[0].Coefficient)
	}
	if segs[1].Coefficient != 1.25 {
		t.Errorf("premium coefficient = %v, want 1.25", segs[1].Coefficient)
	}
}

func TestTimeRange(t *testing.T) {
	s := Segment{
		Start: date(t, 2024, 1, 10, 20, 0),
		End:   date(t, 2024, 1, 10, 22, 0),
	}
	if got := s.TimeRange(); got != "20:00 - 22:00" {
		t.Errorf("TimeRange = %q", got)
	}
}
