/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/models"
)

// Service handles audit logging by subscribing to tracker events and
// storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// actionForEvent maps tracker events to audit actions.
var actionForEvent = map[events.EventType]models.AuditAction{
	events.EventShiftStarted:  models.AuditActionClockIn,
	events.EventShiftClosed:   models.AuditActionClockOut,
	events.EventBreakStarted:  models.AuditActionBreakStart,
	events.EventBreakEnded:    models.AuditActionBreakEnd,
	events.EventOvertimeStart: models.AuditActionOvertimeStart,
	events.EventJobStarted:    models.AuditActionJobStart,
	events.EventJobCompleted:  models.AuditActionJobComplete,
}

// Start subscribes to tracker events and records them as audit entries.
// It blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	type subscription struct {
		eventType events.EventType
		action    models.AuditAction
		ch        events.Subscriber
	}

	subs := make([]subscription, 0, len(actionForEvent))
	for eventType, action := range actionForEvent {
		ch := s.bus.Subscribe(eventType)
		subs = append(subs, subscription{eventType: eventType, action: action, ch: ch})
	}
	defer func() {
		for _, sub := range subs {
			s.bus.Unsubscribe(sub.eventType, sub.ch)
		}
	}()

	// Fan the per-event channels into one so a single select loop serves
	// the whole subscription set.
	type tagged struct {
		action  models.AuditAction
		payload events.Payload
	}
	merged := make(chan tagged, 8)
	for i := range subs {
		sub := subs[i]
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-sub.ch:
					select {
					case merged <- tagged{action: sub.action, payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case entry := <-merged:
			s.logAuditEntry(ctx, entry.action, entry.payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Details:   make(map[string]any),
		CreatedAt: time.Now(),
	}

	if workerID, ok := payload["worker_id"].(string); ok && workerID != "" {
		entry.WorkerID = &workerID
	}
	if blockID, ok := payload["block_id"].(string); ok {
		entry.ResourceID = blockID
	}

	for k, v := range payload {
		switch k {
		case "worker_id", "block_id":
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// Recent returns the most recent audit entries for a worker, newest first.
func (s *Service) Recent(ctx context.Context, workerID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
