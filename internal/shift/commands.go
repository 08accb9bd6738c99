/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import (
	"context"
	"time"

	"github.com/friendsincode/vakt/internal/models"
)

// Gateway is the persistence contract the machine drives. Implemented
// by the gorm store in production and by fakes in tests.
type Gateway interface {
	// Insert persists a new TimeBlock, assigning its ID and Pending status.
	Insert(ctx context.Context, block models.TimeBlock) (models.TimeBlock, error)
	// UpdateEnd closes a currently open block. It fails if id does not
	// refer to an open block.
	UpdateEnd(ctx context.Context, id string, end time.Time) error
	// FindOpenBlock returns the worker's open block, or nil.
	FindOpenBlock(ctx context.Context, workerID string) (*models.TimeBlock, error)
	// MarkJobCompleted flags the external job record completed.
	MarkJobCompleted(ctx context.Context, jobID string) error
}

// Command is one persistence step of an action. Actions compile to an
// ordered command list so transition and split logic stays testable
// without a gateway; Apply runs the side effect.
type Command interface {
	Apply(ctx context.Context, gw Gateway) error
}

// UpdateEndCommand closes the open block at End. Always the first
// command of a close-and-split and the only update the machine ever
// issues against an existing row.
type UpdateEndCommand struct {
	ID  string
	End time.Time
}

func (c UpdateEndCommand) Apply(ctx context.Context, gw Gateway) error {
	return gw.UpdateEnd(ctx, c.ID, c.End)
}

// InsertCommand persists a new block: either an already-closed split
// segment or the next open block of a transition.
type InsertCommand struct {
	Block models.TimeBlock

	// OnInserted receives the stored block (with its assigned ID) so
	// the machine can adopt a newly opened block as current.
	OnInserted func(models.TimeBlock)
}

func (c InsertCommand) Apply(ctx context.Context, gw Gateway) error {
	stored, err := gw.Insert(ctx, c.Block)
	if err != nil {
		return err
	}
	if c.OnInserted != nil {
		c.OnInserted(stored)
	}
	return nil
}

// CompleteJobCommand delegates job completion to the external tracker.
type CompleteJobCommand struct {
	JobID string
}

func (c CompleteJobCommand) Apply(ctx context.Context, gw Gateway) error {
	return gw.MarkJobCompleted(ctx, c.JobID)
}

// Plan is the ordered persistence sequence an action resolved to.
type Plan []Command

// apply runs the plan in order, stopping at the first failure. There
// is no rollback: an error leaves the already-applied prefix in place
// and callers resynchronize by re-fetching.
func (p Plan) apply(ctx context.Context, gw Gateway, opName func(Command) string) error {
	for _, cmd := range p {
		if err := cmd.Apply(ctx, gw); err != nil {
			return &PersistenceError{Op: opName(cmd), Err: err}
		}
	}
	return nil
}

func commandOp(cmd Command) string {
	switch cmd.(type) {
	case UpdateEndCommand:
		return "update_end"
	case InsertCommand:
		return "insert"
	case CompleteJobCommand:
		return "mark_job_completed"
	default:
		return "unknown"
	}
}
