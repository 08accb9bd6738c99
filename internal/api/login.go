/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/cache"
	"github.com/friendsincode/vakt/internal/store"
)

const tokenTTL = 24 * time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	WorkerID string `json:"worker_id"`
	Role     string `json:"role"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "credentials_required")
		return
	}

	worker, err := a.workers.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrWorkerNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	if !auth.CheckPassword(worker.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue(a.jwtSecret, auth.Claims{
		WorkerID: worker.ID,
		Roles:    []string{string(worker.Role)},
	}, tokenTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		WorkerID: worker.ID,
		Role:     string(worker.Role),
	})
}

type meResponse struct {
	WorkerID  string   `json:"worker_id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if a.cache != nil {
		if cached, hit := a.cache.GetWorker(r.Context(), claims.WorkerID); hit {
			writeJSON(w, http.StatusOK, meResponse{
				WorkerID:  cached.ID,
				Email:     cached.Email,
				FirstName: cached.FirstName,
				LastName:  cached.LastName,
				Roles:     claims.Roles,
			})
			return
		}
	}

	worker, err := a.workers.FindByID(r.Context(), claims.WorkerID)
	if err != nil {
		if errors.Is(err, store.ErrWorkerNotFound) {
			writeError(w, http.StatusNotFound, "worker_not_found")
			return
		}
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}

	if a.cache != nil {
		_ = a.cache.SetWorker(r.Context(), &cache.CachedWorker{
			ID:        worker.ID,
			Email:     worker.Email,
			FirstName: worker.FirstName,
			LastName:  worker.LastName,
			Title:     worker.Title,
			Role:      string(worker.Role),
		})
	}

	writeJSON(w, http.StatusOK, meResponse{
		WorkerID:  worker.ID,
		Email:     worker.Email,
		FirstName: worker.FirstName,
		LastName:  worker.LastName,
		Roles:     claims.Roles,
	})
}
