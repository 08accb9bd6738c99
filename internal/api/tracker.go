/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/shift"
	"github.com/friendsincode/vakt/internal/store"
)

type clockInRequest struct {
	Coefficient *float64 `json:"coefficient"`
}

type overtimeRequest struct {
	Coefficient *float64 `json:"coefficient"`
}

type startJobRequest struct {
	JobID string `json:"job_id"`
}

type trackerResponse struct {
	State   shift.State `json:"state"`
	Current any         `json:"current_block,omitempty"`
}

// machineFor resolves the caller's machine from JWT claims. A nil
// return means the response has already been written.
func (a *API) machineFor(w http.ResponseWriter, r *http.Request) *shift.Machine {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.WorkerID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	m, err := a.registry.Get(r.Context(), claims.WorkerID)
	if err != nil {
		a.writeTrackerError(w, err)
		return nil
	}
	return m
}

// writeTrackerError maps domain errors onto HTTP statuses: lifecycle
// violations and stale state are 409 (the client must refresh), bad
// input is 400, and a persistence failure is 502 since the gateway is
// the failing upstream.
func (a *API) writeTrackerError(w http.ResponseWriter, err error) {
	var perr *shift.PersistenceError
	switch {
	case errors.Is(err, shift.ErrStaleState):
		writeError(w, http.StatusConflict, "stale_state")
	case errors.Is(err, shift.ErrPreconditionViolation):
		writeError(w, http.StatusConflict, "action_not_allowed")
	case errors.Is(err, shift.ErrCoefficientOutOfRange):
		writeError(w, http.StatusBadRequest, "coefficient_out_of_range")
	case errors.Is(err, store.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job_not_found")
	case errors.As(err, &perr):
		writeError(w, http.StatusBadGateway, "persistence_failure")
	default:
		a.logger.Error().Err(err).Msg("unmapped tracker error")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func (a *API) respondState(w http.ResponseWriter, m *shift.Machine) {
	resp := trackerResponse{State: m.State()}
	if current := m.Current(); current != nil {
		resp.Current = current
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTrackerCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.WorkerID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Display-only snapshot: actions invalidate it through the bus, so
	// a hit skips the gateway round trip. Dispatch never reads it.
	if a.cache != nil {
		if cached, hit := a.cache.GetCurrentBlock(r.Context(), claims.WorkerID); hit {
			block := fromCachedBlock(*cached)
			writeJSON(w, http.StatusOK, trackerResponse{
				State:   shift.StateForBlock(&block),
				Current: cached,
			})
			return
		}
	}

	m := a.machineFor(w, r)
	if m == nil {
		return
	}
	// Refresh from the gateway so a second device's actions show up.
	if _, err := m.Resume(r.Context()); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	if a.cache != nil {
		if current := m.Current(); current != nil {
			snapshot := toCachedBlock(*current)
			_ = a.cache.SetCurrentBlock(r.Context(), claims.WorkerID, &snapshot)
		}
	}
	a.respondState(w, m)
}

func (a *API) handleClockIn(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}

	coefficient := 1.0
	if r.ContentLength > 0 {
		var req clockInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if req.Coefficient != nil {
			coefficient = *req.Coefficient
		}
	}

	if err := m.ClockIn(r.Context(), coefficient); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}

func (a *API) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}
	if err := m.StartBreak(r.Context()); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}

func (a *API) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}
	if err := m.EndBreak(r.Context()); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}

func (a *API) handleStartOvertime(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}

	coefficient := a.overtimeCoef
	if r.ContentLength > 0 {
		var req overtimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if req.Coefficient != nil {
			coefficient = *req.Coefficient
		}
	}

	if err := m.StartOvertime(r.Context(), coefficient); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}

func (a *API) handleStartJob(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}

	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id_required")
		return
	}

	// The machine does not validate job existence; the store does.
	if _, err := a.blocks.GetJob(r.Context(), req.JobID); err != nil {
		a.writeTrackerError(w, err)
		return
	}

	if err := m.StartJob(r.Context(), req.JobID); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}

func (a *API) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}
	if err := m.CompleteJob(r.Context()); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}

func (a *API) handleClockOut(w http.ResponseWriter, r *http.Request) {
	m := a.machineFor(w, r)
	if m == nil {
		return
	}
	if err := m.ClockOut(r.Context()); err != nil {
		a.writeTrackerError(w, err)
		return
	}
	a.respondState(w, m)
}
