/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/vakt/internal/models"
)

// ErrWorkerNotFound is returned when a worker lookup misses.
var ErrWorkerNotFound = errors.New("store: worker not found")

// Workers provides worker account lookups for the auth surface.
type Workers struct {
	db *gorm.DB
}

// NewWorkers creates the worker store.
func NewWorkers(db *gorm.DB) *Workers {
	return &Workers{db: db}
}

// FindByEmail returns the worker with the given email.
func (s *Workers) FindByEmail(ctx context.Context, email string) (*models.Worker, error) {
	var worker models.Worker
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&worker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("find worker by email: %w", err)
	}
	return &worker, nil
}

// FindByID returns the worker with the given id.
func (s *Workers) FindByID(ctx context.Context, id string) (*models.Worker, error) {
	var worker models.Worker
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&worker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find worker by id: %w", err)
	}
	return &worker, nil
}

// Create inserts a worker account with a pre-hashed password.
func (s *Workers) Create(ctx context.Context, worker models.Worker) (models.Worker, error) {
	if worker.ID == "" {
		worker.ID = uuid.NewString()
	}
	if worker.Role == "" {
		worker.Role = models.RoleWorker
	}
	worker.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(&worker).Error; err != nil {
		return models.Worker{}, fmt.Errorf("create worker: %w", err)
	}
	return worker, nil
}

// ListIDs returns every worker id, used to warm per-worker machines at
// startup.
func (s *Workers) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Worker{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list worker ids: %w", err)
	}
	return ids, nil
}
