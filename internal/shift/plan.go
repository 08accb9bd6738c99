/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import (
	"fmt"
	"time"

	"github.com/friendsincode/vakt/internal/models"
	"github.com/friendsincode/vakt/internal/segment"
)

// CloseAndSplitPlan compiles the persistence sequence that replaces
// one open block with N closed rows tiling [block.StartTime, now):
// exactly one UpdateEnd against the original row (ending it at the
// first segment's end) followed by an insert per remaining segment.
// Pure given its inputs; callers resolve "now" before calling.
func CloseAndSplitPlan(block models.TimeBlock, now time.Time, loc *time.Location, windows []segment.Window) (Plan, error) {
	segments, err := segment.Split(loc, block.StartTime, now, block.Coefficient, windows)
	if err != nil {
		return nil, err
	}

	plan := Plan{UpdateEndCommand{ID: block.ID, End: segments[0].End}}
	for _, seg := range segments[1:] {
		end := seg.End
		plan = append(plan, InsertCommand{Block: models.TimeBlock{
			WorkerID:    block.WorkerID,
			JobID:       block.JobID,
			StartTime:   seg.Start,
			EndTime:     &end,
			Category:    block.Category,
			Type:        block.Type,
			Coefficient: seg.Coefficient,
			Notes:       splitNote(seg, block.Notes),
		}})
	}
	return plan, nil
}

// splitNote labels an inserted split segment, keeping the original
// block's notes, e.g. "Night Shift (22:00 - 00:00) - forgot badge".
func splitNote(seg segment.Segment, original string) string {
	prefix := fmt.Sprintf("%s (%s)", seg.Label, seg.TimeRange())
	if original == "" {
		return prefix
	}
	return prefix + " - " + original
}
