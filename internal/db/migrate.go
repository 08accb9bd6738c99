/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/vakt/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Worker{},
		&models.Job{},
		&models.TimeBlock{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	return applyOpenBlockUniqueGuard(database)
}

// applyOpenBlockUniqueGuard installs the at-most-one-open-block-per-worker
// constraint. Postgres and sqlite support partial unique indexes; mysql
// does not, so there the invariant rests on the store's transactional
// check alone.
func applyOpenBlockUniqueGuard(database *gorm.DB) error {
	switch database.Dialector.Name() {
	case "postgres", "sqlite":
		stmt := `CREATE UNIQUE INDEX IF NOT EXISTS idx_time_blocks_one_open_per_worker
ON time_blocks (worker_id) WHERE end_time IS NULL`
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply open block unique guard: %w", err)
		}
	}
	return nil
}
