/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/friendsincode/vakt/internal/models"
	"github.com/friendsincode/vakt/internal/store"
)

type jobCreateRequest struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Notes  string `json:"notes"`
}

func (a *API) handleJobsList(w http.ResponseWriter, r *http.Request) {
	var jobs []models.Job
	q := a.db.WithContext(r.Context()).Order("created_at DESC")
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&jobs).Error; err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *API) handleJobsGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := a.blocks.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job_not_found")
			return
		}
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) handleJobsCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Number == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "missing_required_fields")
		return
	}

	job := models.Job{
		ID:     uuid.NewString(),
		Number: req.Number,
		Title:  req.Title,
		Status: models.JobBooked,
		Notes:  req.Notes,
	}
	if err := a.db.WithContext(r.Context()).Create(&job).Error; err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}
