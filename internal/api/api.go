/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the tracker HTTP surface: worker actions, the
// current-block read path, and timesheet queries.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/vakt/internal/audit"
	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/cache"
	"github.com/friendsincode/vakt/internal/clock"
	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/models"
	"github.com/friendsincode/vakt/internal/shift"
	"github.com/friendsincode/vakt/internal/store"
)

// API exposes HTTP handlers.
type API struct {
	db           *gorm.DB
	jwtSecret    []byte
	registry     *shift.Registry
	blocks       *store.TimeBlocks
	workers      *store.Workers
	auditSvc     *audit.Service
	cache        *cache.Cache
	bus          *events.Bus
	clk          clock.Clock
	overtimeCoef float64
	logger       zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, registry *shift.Registry, blocks *store.TimeBlocks, workers *store.Workers, auditSvc *audit.Service, cacheSvc *cache.Cache, bus *events.Bus, clk clock.Clock, overtimeCoef float64, logger zerolog.Logger) *API {
	return &API{
		db:           db,
		jwtSecret:    jwtSecret,
		registry:     registry,
		blocks:       blocks,
		workers:      workers,
		auditSvc:     auditSvc,
		cache:        cacheSvc,
		bus:          bus,
		clk:          clk,
		overtimeCoef: overtimeCoef,
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Get("/auth/me", a.handleMe)

			pr.Route("/tracker", func(r chi.Router) {
				r.Get("/current", a.handleTrackerCurrent)
				r.Post("/clock-in", a.handleClockIn)
				r.Post("/break/start", a.handleStartBreak)
				r.Post("/break/end", a.handleEndBreak)
				r.Post("/overtime/start", a.handleStartOvertime)
				r.Post("/jobs/start", a.handleStartJob)
				r.Post("/jobs/complete", a.handleCompleteJob)
				r.Post("/clock-out", a.handleClockOut)
			})

			pr.Route("/timesheet", func(r chi.Router) {
				r.Get("/", a.handleTimesheet)
				r.Get("/summary", a.handleTimesheetSummary)
			})

			pr.Get("/jobs", a.handleJobsList)
			pr.Get("/jobs/{jobID}", a.handleJobsGet)
			pr.With(a.requireRoles(models.RoleAdmin, models.RoleReviewer)).Post("/jobs", a.handleJobsCreate)

			pr.Route("/workers", func(r chi.Router) {
				r.Use(a.requireRoles(models.RoleAdmin, models.RoleReviewer))
				r.Get("/", a.handleWorkersList)
				r.Post("/", a.handleWorkersCreate)
				r.Get("/{workerID}/audit", a.handleWorkerAudit)
			})
		})
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": a.clk.Now().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
