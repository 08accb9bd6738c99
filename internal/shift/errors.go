/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import (
	"errors"
	"fmt"
)

// ErrPreconditionViolation signals an action invoked in a state that
// does not permit it. The caller must resynchronize via Resume rather
// than assume its view of the worker is current; the machine never
// invents a shift or silently no-ops.
var ErrPreconditionViolation = errors.New("shift: action not allowed in current state")

// ErrStaleState is returned when an action is dispatched after a
// persistence failure invalidated the cached state. Call Resume to
// re-derive state from the gateway first.
var ErrStaleState = errors.New("shift: state unsynchronized, resume required")

// ErrCoefficientOutOfRange rejects coefficients outside [0, MaxCoefficient]
// before any persistence call is issued.
var ErrCoefficientOutOfRange = errors.New("shift: coefficient out of range")

// MaxCoefficient bounds caller-supplied pay multipliers.
const MaxCoefficient = 10

// PersistenceError wraps a failing gateway call. Steps completed before
// the failure are not rolled back; the machine drops its cached state
// so the next action re-derives it from the gateway.
type PersistenceError struct {
	Op  string // gateway operation that failed
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("shift: persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func preconditionErr(action Action, state State) error {
	return fmt.Errorf("%w: %s while %s", ErrPreconditionViolation, action, state)
}
