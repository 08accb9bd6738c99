/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for tracker operations.
const (
	AuditActionClockIn       AuditAction = "tracker.clock_in"
	AuditActionClockOut      AuditAction = "tracker.clock_out"
	AuditActionBreakStart    AuditAction = "tracker.break_start"
	AuditActionBreakEnd      AuditAction = "tracker.break_end"
	AuditActionOvertimeStart AuditAction = "tracker.overtime_start"
	AuditActionJobStart      AuditAction = "tracker.job_start"
	AuditActionJobComplete   AuditAction = "tracker.job_complete"
	AuditActionSplit         AuditAction = "tracker.split"
)

// AuditLog records tracker operations for review and compliance.
type AuditLog struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Timestamp  time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	WorkerID   *string        `gorm:"type:uuid;index:idx_audit_worker"` // NULL for system actions
	Action     AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceID string         `gorm:"type:uuid"`                  // affected TimeBlock or Job
	Details    map[string]any `gorm:"type:jsonb;serializer:json"` // Action-specific details
	CreatedAt  time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
