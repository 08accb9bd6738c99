/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/cache"
	"github.com/friendsincode/vakt/internal/models"
)

// parseRange reads from/to query parameters. Either RFC 3339 or a bare
// date is accepted; a bare "to" date extends to the end of that day.
// Missing parameters default to the current day.
func (a *API) parseRange(r *http.Request) (from, to time.Time, err error) {
	loc := a.clk.Location()
	now := a.clk.Now().In(loc)

	parse := func(s string, endOfDay bool) (time.Time, error) {
		if t, perr := time.Parse(time.RFC3339, s); perr == nil {
			return t, nil
		}
		t, perr := time.ParseInLocation("2006-01-02", s, loc)
		if perr != nil {
			return time.Time{}, perr
		}
		if endOfDay {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	to = from.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = parse(s, false); err != nil {
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = parse(s, true); err != nil {
			return
		}
	}
	return
}

func toCachedBlock(b models.TimeBlock) cache.CachedBlock {
	return cache.CachedBlock{
		ID:          b.ID,
		WorkerID:    b.WorkerID,
		Category:    string(b.Category),
		Type:        string(b.Type),
		JobID:       b.JobID,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Coefficient: b.Coefficient,
		Status:      string(b.Status),
		Notes:       b.Notes,
	}
}

func fromCachedBlock(b cache.CachedBlock) models.TimeBlock {
	return models.TimeBlock{
		ID:          b.ID,
		WorkerID:    b.WorkerID,
		Category:    models.BlockCategory(b.Category),
		Type:        models.BlockType(b.Type),
		JobID:       b.JobID,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Coefficient: b.Coefficient,
		Status:      models.BlockStatus(b.Status),
		Notes:       b.Notes,
	}
}

func (a *API) handleTimesheet(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	from, to, err := a.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	if a.cache != nil {
		if cached, hit := a.cache.GetTimesheet(r.Context(), claims.WorkerID, from, to); hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	blocks, err := a.blocks.BlocksInRange(r.Context(), claims.WorkerID, from, to)
	if err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}

	out := make([]cache.CachedBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toCachedBlock(b))
	}

	if a.cache != nil {
		_ = a.cache.SetTimesheet(r.Context(), claims.WorkerID, from, to, out)
	}
	writeJSON(w, http.StatusOK, out)
}

type timesheetSummary struct {
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	Blocks        int                `json:"blocks"`
	Hours         map[string]float64 `json:"hours_by_category"`
	WeightedHours float64            `json:"weighted_hours"`
}

func (a *API) handleTimesheetSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	from, to, err := a.parseRange(r)
	if err != nil || !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	blocks, err := a.blocks.BlocksInRange(r.Context(), claims.WorkerID, from, to)
	if err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}

	summary := timesheetSummary{
		From:  from,
		To:    to,
		Hours: make(map[string]float64),
	}
	for _, b := range blocks {
		if b.Open() {
			continue
		}
		summary.Blocks++
		summary.Hours[string(b.Category)] += b.EndTime.Sub(b.StartTime).Hours()
		summary.WeightedHours += b.WeightedHours()
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleWorkerAudit(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id_required")
		return
	}

	entries, err := a.auditSvc.Recent(r.Context(), workerID, 100)
	if err != nil {
		writeError(w, http.StatusBadGateway, "persistence_failure")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
