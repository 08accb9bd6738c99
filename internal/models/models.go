/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"time"
)

// RoleName enumerates account roles.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleReviewer RoleName = "reviewer"
	RoleWorker   RoleName = "worker"
)

// Worker represents an hourly worker account.
type Worker struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Email       string `gorm:"uniqueIndex"`
	Password    string
	FirstName   string
	LastName    string
	Title       string
	PhoneNumber string
	Role        RoleName `gorm:"type:varchar(16)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlockCategory is the kind of worked interval.
type BlockCategory string

const (
	CategoryShift    BlockCategory = "shift"
	CategoryBreak    BlockCategory = "break"
	CategoryOvertime BlockCategory = "overtime"
)

// BlockType distinguishes general shifts from job-bound ones.
type BlockType string

const (
	TypeRegular BlockType = "regular"
	TypeJob     BlockType = "job"
)

// BlockStatus is the review lifecycle. The core only ever creates
// Pending rows; Approved/Rejected are written by the reviewer surface.
type BlockStatus string

const (
	StatusPending  BlockStatus = "pending"
	StatusApproved BlockStatus = "approved"
	StatusRejected BlockStatus = "rejected"
)

// ValidCombination reports whether category and type may be paired.
// Breaks are never job-bound.
func ValidCombination(category BlockCategory, blockType BlockType) bool {
	switch category {
	case CategoryShift, CategoryOvertime:
		return blockType == TypeRegular || blockType == TypeJob
	case CategoryBreak:
		return blockType == TypeRegular
	default:
		return false
	}
}

// TimeBlock is the persisted unit of record: one worked, break, or
// overtime interval with a pay coefficient. A nil EndTime means the
// block is OPEN (the worker is clocked into it); at most one block per
// worker may be open at a time, enforced by a partial unique index.
type TimeBlock struct {
	ID              string        `gorm:"type:uuid;primaryKey" json:"id"`
	WorkerID        string        `gorm:"type:uuid;index" json:"worker_id"`
	JobID           *string       `gorm:"type:uuid" json:"job_id,omitempty"`
	StartTime       time.Time     `gorm:"index" json:"start_time"`
	EndTime         *time.Time    `gorm:"index" json:"end_time"`
	Category        BlockCategory `gorm:"type:varchar(16)" json:"category"`
	Type            BlockType     `gorm:"type:varchar(16)" json:"type"`
	Coefficient     float64       `gorm:"type:decimal(5,2)" json:"coefficient"`
	Status          BlockStatus   `gorm:"type:varchar(16)" json:"status"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty"`
	RejectionReason string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReviewedByID    *string       `gorm:"type:uuid" json:"reviewed_by_id,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Open reports whether the block has no end yet.
func (b TimeBlock) Open() bool {
	return b.EndTime == nil
}

// Duration returns the closed block's length, or the time worked so
// far against now for an open one.
func (b TimeBlock) Duration(now time.Time) time.Duration {
	if b.EndTime != nil {
		return b.EndTime.Sub(b.StartTime)
	}
	return now.Sub(b.StartTime)
}

// WeightedHours returns coefficient-weighted hours for a closed block.
func (b TimeBlock) WeightedHours() float64 {
	if b.EndTime == nil {
		return 0
	}
	return b.EndTime.Sub(b.StartTime).Hours() * b.Coefficient
}

func (b TimeBlock) String() string {
	end := "open"
	if b.EndTime != nil {
		end = b.EndTime.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s/%s %s -> %s x%.2f", b.Category, b.Type, b.StartTime.Format(time.RFC3339), end, b.Coefficient)
}

// JobStatus mirrors the external work-order lifecycle. The core only
// ever moves a job to completed.
type JobStatus string

const (
	JobUnscheduled JobStatus = "unscheduled"
	JobBooked      JobStatus = "booked"
	JobInProgress  JobStatus = "in_progress"
	JobCompleted   JobStatus = "completed"
	JobCanceled    JobStatus = "canceled"
)

// Job is an externally managed work order a shift may be billed to.
type Job struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Number    string    `gorm:"index" json:"number"`
	Title     string    `json:"title"`
	Status    JobStatus `gorm:"type:varchar(24)" json:"status"`
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
