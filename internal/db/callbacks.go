/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"time"

	"github.com/openairworks/aether_radio/internal/telemetry"
	"gorm.io/gorm"
)

const _startTime = "gorm:start_time"

// RegisterCallbacks registers telemetry callbacks for GORM operations.
func RegisterCallbacks(db *gorm.DB) error {
	if err := registerQueryCallbacks(db); err != nil {
		return err
	}
	if err := registerCreateCallbacks(db); err != nil {
		return err
	}
	if err := registerUpdateCallbacks(db); err != nil {
		return err
	}
	return registerDeleteCallbacks(db)
}

func registerQueryCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("telemetry:before_query", beforeCallback); err != nil {
		return err
	}
	return db.Callback().Query().After("gorm:query").Register("telemetry:after_query", afterCallback("query"))
}

func registerCreateCallbacks(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("telemetry:before_create", beforeCallback); err != nil {
		return err
	}
	return db.Callback().Create().After("gorm:create").Register("telemetry:after_create", afterCallback("create"))
}

func registerUpdateCallbacks(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("telemetry:before_update", beforeCallback); err != nil {
		return err
	}
	return db.Callback().Update().After("gorm:update").Register("telemetry:after_update", afterCallback("update"))
}

func registerDeleteCallbacks(db *gorm.DB) error {
	if err := db.Callback().Delete().Before("gorm:delete").Register("telemetry:before_delete", beforeCallback); err != nil {
		return err
	}
	return db.Callback().Delete().After("gorm:delete").Register("telemetry:after_delete", afterCallback("delete"))
}

// beforeCallback records the start time before a database operation.
func beforeCallback(db *gorm.DB) {
	db.InstanceSet(_startTime, time.Now())
}

// afterCallback creates a callback that records metrics after a database operation.
func afterCallback(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		startTimeValue, exists := db.InstanceGet(_startTime)
		if !exists {
			return
		}
		startTime, ok := startTimeValue.(time.Time)
		if !ok {
			return
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		telemetry.DatabaseQueryDuration.WithLabelValues(operation, tableName).Observe(time.Since(startTime).Seconds())

		if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation).Inc()
		}
	}
}
