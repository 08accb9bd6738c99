/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"

	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/models"
)

type workerCreateRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Role      string `json:"role"`
}

type workerResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Role      string `json:"role"`
}

func toWorkerResponse(w models.Worker) workerResponse {
	return workerResponse{
		ID:        w.ID,
		Email:     w.Email,
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Title:     w.Title,
		Role:      string(w.Role),
	}
}

func (a *API) handleWorkersList(w http.ResponseWriter, r *http.Request) {
	var workers []models.Worker
	if err := a.db.WithContext(r.Context()).Order("email").Find(&workers).Error; err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	out := make([]workerResponse, 0, len(workers))
	for _, worker := range workers {
		out = append(out, toWorkerResponse(worker))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleWorkersCreate(w http.ResponseWriter, r *http.Request) {
	var req workerCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_required_fields")
		return
	}
	role := models.RoleName(req.Role)
	switch role {
	case "", models.RoleWorker, models.RoleReviewer, models.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.logger.Error().Err(err).Msg("password hash failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	worker, err := a.workers.Create(r.Context(), models.Worker{
		Email:     req.Email,
		Password:  hash,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Title:     req.Title,
		Role:      role,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	if a.bus != nil {
		a.bus.Publish(events.EventWorkerUpdated, events.Payload{"worker_id": worker.ID})
	}
	writeJSON(w, http.StatusCreated, toWorkerResponse(worker))
}
