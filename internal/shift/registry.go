/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/vakt/internal/clock"
	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/segment"
)

// Registry hands out one machine per worker, creating and resuming it
// on first use.
type Registry struct {
	gw      Gateway
	clk     clock.Clock
	windows []segment.Window
	bus     *events.Bus
	logger  zerolog.Logger

	mu       sync.Mutex
	machines map[string]*Machine
}

// NewRegistry creates an empty machine registry.
func NewRegistry(gw Gateway, clk clock.Clock, windows []segment.Window, bus *events.Bus, logger zerolog.Logger) *Registry {
	return &Registry{
		gw:       gw,
		clk:      clk,
		windows:  windows,
		bus:      bus,
		logger:   logger,
		machines: make(map[string]*Machine),
	}
}

// Get returns the worker's machine, resuming a fresh one from the
// gateway on first use.
func (r *Registry) Get(ctx context.Context, workerID string) (*Machine, error) {
	r.mu.Lock()
	m, ok := r.machines[workerID]
	if !ok {
		m = NewMachine(workerID, r.gw, r.clk, r.windows, r.bus, r.logger)
		r.machines[workerID] = m
	}
	r.mu.Unlock()

	if !ok {
		if _, err := m.Resume(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Warm resumes machines for the given workers so the first request
// after a restart does not pay the cold resume. Failures are logged
// and retried lazily by Get.
func (r *Registry) Warm(ctx context.Context, workerIDs []string) {
	for _, id := range workerIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.Get(ctx, id); err != nil {
			r.logger.Warn().Err(err).Str("worker", id).Msg("machine warm-up failed")
		}
	}
	r.logger.Info().Int("workers", len(workerIDs)).Msg("machines warmed")
}
