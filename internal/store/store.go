/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store implements the persistence gateway over gorm. It is
// the single owner of the one-open-block-per-worker invariant.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/vakt/internal/models"
)

// ErrBlockNotOpen is returned by UpdateEnd when the id does not refer
// to a currently open block.
var ErrBlockNotOpen = errors.New("store: time block not open")

// ErrOpenBlockExists is returned when inserting an open block for a
// worker who already has one.
var ErrOpenBlockExists = errors.New("store: worker already has an open block")

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("store: job not found")

// TimeBlocks is the gorm-backed shift.Gateway implementation.
type TimeBlocks struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewTimeBlocks creates the time block store.
func NewTimeBlocks(db *gorm.DB, logger zerolog.Logger) *TimeBlocks {
	return &TimeBlocks{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Insert persists a block, assigning its id and Pending status. An
// open insert re-checks the single-open-row invariant inside the
// transaction; the partial unique index backstops concurrent writers.
func (s *TimeBlocks) Insert(ctx context.Context, block models.TimeBlock) (models.TimeBlock, error) {
	if !models.ValidCombination(block.Category, block.Type) {
		return models.TimeBlock{}, fmt.Errorf("store: invalid category/type pair %s/%s", block.Category, block.Type)
	}

	block.ID = uuid.NewString()
	block.Status = models.StatusPending

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if block.EndTime == nil {
			var count int64
			if err := tx.Model(&models.TimeBlock{}).
				Where("worker_id = ? AND end_time IS NULL", block.WorkerID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrOpenBlockExists
			}
		}
		return tx.Create(&block).Error
	})
	if err != nil {
		return models.TimeBlock{}, fmt.Errorf("insert time block: %w", err)
	}
	return block, nil
}

// UpdateEnd closes an open block. This is the only update the tracker
// ever issues against an existing row; the open-row guard in the WHERE
// clause makes a double close fail loudly instead of rewriting history.
func (s *TimeBlocks) UpdateEnd(ctx context.Context, id string, end time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.TimeBlock{}).
		Where("id = ? AND end_time IS NULL", id).
		Update("end_time", end)
	if res.Error != nil {
		return fmt.Errorf("update time block end: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrBlockNotOpen, id)
	}
	return nil
}

// FindOpenBlock returns the worker's open block, or nil without error.
func (s *TimeBlocks) FindOpenBlock(ctx context.Context, workerID string) (*models.TimeBlock, error) {
	var block models.TimeBlock
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND end_time IS NULL", workerID).
		First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open block: %w", err)
	}
	return &block, nil
}

// MarkJobCompleted flags the external job record completed.
func (s *TimeBlocks) MarkJobCompleted(ctx context.Context, jobID string) error {
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", jobID).
		Update("status", models.JobCompleted)
	if res.Error != nil {
		return fmt.Errorf("mark job completed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return nil
}

// BlocksInRange returns a worker's blocks overlapping [from, to),
// ordered by start. Open blocks overlap any range extending past
// their start.
func (s *TimeBlocks) BlocksInRange(ctx context.Context, workerID string, from, to time.Time) ([]models.TimeBlock, error) {
	var blocks []models.TimeBlock
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND start_time < ? AND (end_time IS NULL OR end_time > ?)", workerID, to, from).
		Order("start_time asc").
		Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("list blocks in range: %w", err)
	}
	return blocks, nil
}

// GetJob looks up a job by id.
func (s *TimeBlocks) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}
