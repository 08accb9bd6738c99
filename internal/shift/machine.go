/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package shift implements the per-worker shift lifecycle state
// machine. Actions compile to ordered persistence command plans; the
// split math lives in internal/segment.
package shift

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/vakt/internal/clock"
	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/models"
	"github.com/friendsincode/vakt/internal/segment"
	"github.com/friendsincode/vakt/internal/telemetry"
)

// State enumerates the shift lifecycle states.
type State string

const (
	NoActiveShift  State = "no_active_shift"
	OnRegularShift State = "on_regular_shift"
	OnBreak        State = "on_break"
	OnOvertime     State = "on_overtime"
	OnJobShift     State = "on_job_shift"
)

// Action enumerates worker actions.
type Action string

const (
	ActionClockIn       Action = "clock_in"
	ActionStartBreak    Action = "start_break"
	ActionEndBreak      Action = "end_break"
	ActionStartOvertime Action = "start_overtime"
	ActionStartJob      Action = "start_job"
	ActionClockOut      Action = "clock_out"
	ActionCompleteJob   Action = "complete_job"
)

// StateForBlock derives the machine state from a worker's open block.
// No open block means no active shift.
func StateForBlock(block *models.TimeBlock) State {
	if block == nil {
		return NoActiveShift
	}
	switch block.Category {
	case models.CategoryBreak:
		return OnBreak
	case models.CategoryOvertime:
		return OnOvertime
	default:
		if block.Type == models.TypeJob {
			return OnJobShift
		}
		return OnRegularShift
	}
}

// Machine owns one worker's lifecycle state and the currently open
// block. Both are derived from the gateway at startup and re-derived
// after any persistence failure; the gateway stays the source of
// truth. Actions are serialized: a second device racing this process
// is fenced only by the store's one-open-row-per-worker constraint.
type Machine struct {
	workerID string
	gw       Gateway
	clk      clock.Clock
	windows  []segment.Window
	bus      *events.Bus
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	current *models.TimeBlock
	synced  bool

	// nextCurrent is set by the open-block insert of the in-flight
	// plan and adopted when the whole plan applies cleanly.
	nextCurrent *models.TimeBlock
}

// NewMachine creates an unsynchronized machine; call Resume before
// dispatching actions.
func NewMachine(workerID string, gw Gateway, clk clock.Clock, windows []segment.Window, bus *events.Bus, logger zerolog.Logger) *Machine {
	return &Machine{
		workerID: workerID,
		gw:       gw,
		clk:      clk,
		windows:  windows,
		bus:      bus,
		logger:   logger.With().Str("component", "shift").Str("worker", workerID).Logger(),
	}
}

// Resume re-derives state from the gateway's open block. Required at
// cold start and after ErrStaleState / a persistence failure.
func (m *Machine) Resume(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	block, err := m.gw.FindOpenBlock(ctx, m.workerID)
	if err != nil {
		m.synced = false
		return "", &PersistenceError{Op: "find_open_block", Err: err}
	}

	m.current = block
	m.state = StateForBlock(block)
	m.synced = true

	m.logger.Debug().Str("state", string(m.state)).Msg("state resumed from gateway")
	return m.state, nil
}

// State returns the cached state. Meaningful only while synchronized.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the cached open block, or nil.
func (m *Machine) Current() *models.TimeBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// ClockIn opens a regular shift at the given coefficient.
func (m *Machine) ClockIn(ctx context.Context, coefficient float64) error {
	return m.dispatch(ctx, ActionClockIn, func() (Plan, error) {
		if m.state != NoActiveShift {
			return nil, preconditionErr(ActionClockIn, m.state)
		}
		if err := checkCoefficient(coefficient); err != nil {
			return nil, err
		}
		return Plan{m.openBlockCommand(models.CategoryShift, models.TypeRegular, nil, coefficient)}, nil
	})
}

// StartBreak closes the running shift and opens an unpaid break.
func (m *Machine) StartBreak(ctx context.Context) error {
	return m.dispatch(ctx, ActionStartBreak, func() (Plan, error) {
		switch m.state {
		case OnRegularShift, OnOvertime, OnJobShift:
		default:
			return nil, preconditionErr(ActionStartBreak, m.state)
		}
		plan, err := m.closeAndSplitPlan()
		if err != nil {
			return nil, err
		}
		return append(plan, m.openBlockCommand(models.CategoryBreak, models.TypeRegular, nil, 0)), nil
	})
}

// EndBreak closes the break and resumes a regular shift at 1x.
func (m *Machine) EndBreak(ctx context.Context) error {
	return m.dispatch(ctx, ActionEndBreak, func() (Plan, error) {
		if m.state != OnBreak {
			return nil, preconditionErr(ActionEndBreak, m.state)
		}
		plan, err := m.closeAndSplitPlan()
		if err != nil {
			return nil, err
		}
		return append(plan, m.openBlockCommand(models.CategoryShift, models.TypeRegular, nil, 1)), nil
	})
}

// StartOvertime closes the running shift and opens an overtime block
// carrying the current block's type and job.
func (m *Machine) StartOvertime(ctx context.Context, coefficient float64) error {
	return m.dispatch(ctx, ActionStartOvertime, func() (Plan, error) {
		switch m.state {
		case OnRegularShift, OnJobShift:
		default:
			return nil, preconditionErr(ActionStartOvertime, m.state)
		}
		if err := checkCoefficient(coefficient); err != nil {
			return nil, err
		}
		blockType := m.current.Type
		jobID := m.current.JobID
		plan, err := m.closeAndSplitPlan()
		if err != nil {
			return nil, err
		}
		return append(plan, m.openBlockCommand(models.CategoryOvertime, blockType, jobID, coefficient)), nil
	})
}

// StartJob closes the running shift and opens a job-bound shift at 1x.
func (m *Machine) StartJob(ctx context.Context, jobID string) error {
	return m.dispatch(ctx, ActionStartJob, func() (Plan, error) {
		switch m.state {
		case OnRegularShift, OnOvertime:
		default:
			return nil, preconditionErr(ActionStartJob, m.state)
		}
		if jobID == "" {
			return nil, fmt.Errorf("%w: empty job id", ErrPreconditionViolation)
		}
		plan, err := m.closeAndSplitPlan()
		if err != nil {
			return nil, err
		}
		return append(plan, m.openBlockCommand(models.CategoryShift, models.TypeJob, &jobID, 1)), nil
	})
}

// ClockOut closes the open block, whatever it is.
func (m *Machine) ClockOut(ctx context.Context) error {
	return m.dispatch(ctx, ActionClockOut, func() (Plan, error) {
		if m.state == NoActiveShift {
			return nil, preconditionErr(ActionClockOut, m.state)
		}
		return m.closeAndSplitPlan()
	})
}

// CompleteJob closes the job shift, marks the external job completed,
// and resumes a regular shift at 1x.
func (m *Machine) CompleteJob(ctx context.Context) error {
	return m.dispatch(ctx, ActionCompleteJob, func() (Plan, error) {
		if m.state != OnJobShift {
			return nil, preconditionErr(ActionCompleteJob, m.state)
		}
		jobID := m.current.JobID
		plan, err := m.closeAndSplitPlan()
		if err != nil {
			return nil, err
		}
		if jobID != nil {
			plan = append(plan, CompleteJobCommand{JobID: *jobID})
		}
		return append(plan, m.openBlockCommand(models.CategoryShift, models.TypeRegular, nil, 1)), nil
	})
}

// dispatch serializes an action: build the plan under the lock, apply
// it step by step, and settle the resulting state. A persistence
// failure abandons the remaining steps, leaves the applied prefix in
// place, and drops the cached state so the next action must Resume.
func (m *Machine) dispatch(ctx context.Context, action Action, build func() (Plan, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synced {
		return fmt.Errorf("%w: %s", ErrStaleState, action)
	}

	before := m.state
	m.nextCurrent = nil

	plan, err := build()
	if err != nil {
		m.logger.Warn().Err(err).Str("action", string(action)).Str("state", string(before)).Msg("action rejected")
		telemetry.TrackerActionsTotal.WithLabelValues(string(action), "rejected").Inc()
		return err
	}

	if err := plan.apply(ctx, m.gw, commandOp); err != nil {
		m.synced = false
		m.current = nil
		m.logger.Error().Err(err).Str("action", string(action)).Msg("action abandoned mid-sequence")
		telemetry.TrackerActionsTotal.WithLabelValues(string(action), "failed").Inc()
		return err
	}

	m.current = m.nextCurrent
	m.nextCurrent = nil
	m.state = StateForBlock(m.current)

	telemetry.TrackerActionsTotal.WithLabelValues(string(action), "applied").Inc()
	if splitRows := closedInserts(plan); splitRows > 0 {
		telemetry.SplitSegmentsTotal.Add(float64(splitRows))
	}
	switch {
	case before == NoActiveShift && m.state != NoActiveShift:
		telemetry.OpenShifts.Inc()
	case before != NoActiveShift && m.state == NoActiveShift:
		telemetry.OpenShifts.Dec()
	}

	m.logger.Info().
		Str("action", string(action)).
		Str("from", string(before)).
		Str("to", string(m.state)).
		Msg("action applied")

	m.publish(action, before)
	return nil
}

// closeAndSplitPlan compiles the shared close-and-split sub-procedure
// for the current open block against "now": one UpdateEnd on the
// original row (the first segment), then one insert per remaining
// segment, each already closed and carrying the original
// category/type/job with the segment's own coefficient.
func (m *Machine) closeAndSplitPlan() (Plan, error) {
	return CloseAndSplitPlan(*m.current, m.clk.Now(), m.clk.Location(), m.windows)
}

// openBlockCommand appends the insert that opens the next block and
// adopts it as current once the gateway assigns its identity.
func (m *Machine) openBlockCommand(category models.BlockCategory, blockType models.BlockType, jobID *string, coefficient float64) Command {
	return InsertCommand{
		Block: models.TimeBlock{
			WorkerID:    m.workerID,
			JobID:       jobID,
			StartTime:   m.clk.Now(),
			Category:    category,
			Type:        blockType,
			Coefficient: coefficient,
		},
		OnInserted: func(stored models.TimeBlock) {
			m.nextCurrent = &stored
		},
	}
}

func (m *Machine) publish(action Action, from State) {
	if m.bus == nil {
		return
	}
	payload := events.Payload{
		"worker_id": m.workerID,
		"action":    string(action),
		"from":      string(from),
		"to":        string(m.state),
	}
	if m.current != nil {
		payload["block_id"] = m.current.ID
		payload["category"] = string(m.current.Category)
	}
	m.bus.Publish(events.EventForAction(string(action)), payload)
	m.bus.Publish(events.EventBlocksChanged, events.Payload{"worker_id": m.workerID})
}

// closedInserts counts the already-closed rows a plan inserts, i.e. the
// extra segments produced by close-and-split.
func closedInserts(plan Plan) int {
	n := 0
	for _, cmd := range plan {
		if ins, ok := cmd.(InsertCommand); ok && ins.Block.EndTime != nil {
			n++
		}
	}
	return n
}

func checkCoefficient(coefficient float64) error {
	if coefficient < 0 || coefficient > MaxCoefficient {
		return fmt.Errorf("%w: %v", ErrCoefficientOutOfRange, coefficient)
	}
	return nil
}
