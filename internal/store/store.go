/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store provides read access to the station/script/fragment catalogue
// and the fire-and-forget rotation bookkeeping writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openairworks/aether_radio/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrNotFound reports an unknown station, script, or fragment.
var ErrNotFound = errors.New("configuration not found")

// Store wraps the configuration database.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a store over the given database handle.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying handle for composition-root plumbing.
func (s *Store) DB() *gorm.DB { return s.db }

// StationBySlug loads one station's configuration.
func (s *Store) StationBySlug(ctx context.Context, slug string) (*models.Station, error) {
	var station models.Station
	err := s.db.WithContext(ctx).
		Preload("Scripts", "active = ?", true).
		First(&station, "slug = ? AND archived = ?", slug, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("station %q: %w", slug, ErrNotFound)
		}
		return nil, err
	}
	return &station, nil
}

// AssignedFragments returns the station's active fragment assignments with
// rotation state, fragment records preloaded.
func (s *Store) AssignedFragments(ctx context.Context, stationID string) ([]models.StationFragment, error) {
	var assigned []models.StationFragment
	err := s.db.WithContext(ctx).
		Preload("Fragment").
		Where("station_id = ? AND active = ?", stationID, true).
		Find(&assigned).Error
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// ActiveScenes returns scenes attached to the station's active scripts,
// ordered by the station's script ranking, prompts preloaded in rank order.
func (s *Store) ActiveScenes(ctx context.Context, stationID string) ([]models.Scene, error) {
	var scenes []models.Scene
	err := s.db.WithContext(ctx).
		Preload("Prompts", func(tx *gorm.DB) *gorm.DB { return tx.Order("rank ASC") }).
		Joins("JOIN station_scripts ON station_scripts.script_id = scenes.script_id").
		Where("station_scripts.station_id = ? AND station_scripts.active = ?", stationID, true).
		Order("station_scripts.rank ASC, scenes.start_time ASC").
		Find(&scenes).Error
	if err != nil {
		return nil, err
	}
	return scenes, nil
}

// ScenesForScripts returns scenes for an explicit script selection; used when
// building one-time ephemeral streams.
func (s *Store) ScenesForScripts(ctx context.Context, scriptIDs []string) ([]models.Scene, error) {
	if len(scriptIDs) == 0 {
		return nil, nil
	}
	var scenes []models.Scene
	err := s.db.WithContext(ctx).
		Preload("Prompts", func(tx *gorm.DB) *gorm.DB { return tx.Order("rank ASC") }).
		Where("script_id IN ?", scriptIDs).
		Find(&scenes).Error
	if err != nil {
		return nil, err
	}
	return scenes, nil
}

// MarkSceneFired persists the one-time-run flag; a fired scene never repeats.
func (s *Store) MarkSceneFired(ctx context.Context, sceneID string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Scene{}).
		Where("id = ?", sceneID).
		Update("fired_at", at).Error
}

// IncrementPlayCount bumps rotation state for a fragment on a station.
// Callers treat failures as transient: log and move on, never fail the tick.
func (s *Store) IncrementPlayCount(ctx context.Context, stationID, fragmentID string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.StationFragment{}).
		Where("station_id = ? AND fragment_id = ?", stationID, fragmentID).
		Updates(map[string]any{
			"played_count":   gorm.Expr("played_count + 1"),
			"last_played_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("assignment %s/%s: %w", stationID, fragmentID, ErrNotFound)
	}
	return nil
}

// FragmentByID loads one fragment record.
func (s *Store) FragmentByID(ctx context.Context, id string) (*models.SoundFragment, error) {
	var fragment models.SoundFragment
	err := s.db.WithContext(ctx).First(&fragment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fragment %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &fragment, nil
}
