/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/openairworks/aether_radio/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Station{},
		&models.SoundFragment{},
		&models.StationFragment{},
		&models.Script{},
		&models.StationScript{},
		&models.Scene{},
		&models.Prompt{},
	)
}
