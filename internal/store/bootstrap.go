/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/openairworks/aether_radio/internal/models"
	"gopkg.in/yaml.v3"
)

// bootstrapFile is the YAML shape accepted by Bootstrap.
type bootstrapFile struct {
	Stations []bootstrapStation `yaml:"stations"`
	Scripts  []bootstrapScript  `yaml:"scripts"`
}

type bootstrapStation struct {
	Slug        string              `yaml:"slug"`
	Name        string              `yaml:"name"`
	Country     string              `yaml:"country"`
	Timezone    string              `yaml:"timezone"`
	BitrateKbps int                 `yaml:"bitrate_kbps"`
	ManagedBy   string              `yaml:"managed_by"`
	AgentID     string              `yaml:"agent_id"`
	Scripts     []string            `yaml:"scripts"` // Script names, attached in order
	Fragments   []bootstrapFragment `yaml:"fragments"`
}

type bootstrapFragment struct {
	Title           string `yaml:"title"`
	Artist          string `yaml:"artist"`
	Genre           string `yaml:"genre"`
	Path            string `yaml:"path"`
	StorageKey      string `yaml:"storage_key"`
	DurationSeconds int    `yaml:"duration_seconds"`
}

type bootstrapScript struct {
	Name   string           `yaml:"name"`
	Scenes []bootstrapScene `yaml:"scenes"`
}

type bootstrapScene struct {
	Name        string   `yaml:"name"`
	StartTime   string   `yaml:"start_time"`
	Weekdays    string   `yaml:"weekdays"`
	OneTimeRun  bool     `yaml:"one_time_run"`
	Talkativity float64  `yaml:"talkativity"`
	Prompts     []string `yaml:"prompts"`
}

// Bootstrap seeds the catalogue from a YAML file. It is a no-op when the
// store already holds stations, so repeated startups do not duplicate data.
func (s *Store) Bootstrap(ctx context.Context, path string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Station{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.logger.Debug().Str("path", path).Msg("bootstrap skipped, catalogue not empty")
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bootstrap file: %w", err)
	}

	var file bootstrapFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse bootstrap file: %w", err)
	}

	scriptIDs := make(map[string]string, len(file.Scripts))
	for _, script := range file.Scripts {
		record := models.Script{ID: uuid.NewString(), Name: script.Name}
		if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("create script %q: %w", script.Name, err)
		}
		scriptIDs[script.Name] = record.ID

		for _, scene := range script.Scenes {
			sceneRecord := models.Scene{
				ID:          uuid.NewString(),
				ScriptID:    record.ID,
				Name:        scene.Name,
				StartTime:   scene.StartTime,
				Weekdays:    scene.Weekdays,
				OneTimeRun:  scene.OneTimeRun,
				Talkativity: scene.Talkativity,
			}
			if err := s.db.WithContext(ctx).Create(&sceneRecord).Error; err != nil {
				return fmt.Errorf("create scene %q: %w", scene.Name, err)
			}
			for rank, prompt := range scene.Prompts {
				promptRecord := models.Prompt{
					ID:      uuid.NewString(),
					SceneID: sceneRecord.ID,
					Rank:    rank,
					Text:    prompt,
				}
				if err := s.db.WithContext(ctx).Create(&promptRecord).Error; err != nil {
					return fmt.Errorf("create prompt for scene %q: %w", scene.Name, err)
				}
			}
		}
	}

	for _, station := range file.Stations {
		managedBy := models.ManagedBy(station.ManagedBy)
		if managedBy == "" {
			managedBy = models.ManagedSelf
		}
		record := models.Station{
			ID:          uuid.NewString(),
			Slug:        station.Slug,
			Name:        station.Name,
			Country:     station.Country,
			Timezone:    station.Timezone,
			BitrateKbps: station.BitrateKbps,
			ManagedBy:   managedBy,
			AgentID:     station.AgentID,
		}
		if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("create station %q: %w", station.Slug, err)
		}

		for rank, fragment := range station.Fragments {
			fragRecord := models.SoundFragment{
				ID:         uuid.NewString(),
				Title:      fragment.Title,
				Artist:     fragment.Artist,
				Genre:      fragment.Genre,
				Path:       fragment.Path,
				StorageKey: fragment.StorageKey,
				Duration:   time.Duration(fragment.DurationSeconds) * time.Second,
			}
			if err := s.db.WithContext(ctx).Create(&fragRecord).Error; err != nil {
				return fmt.Errorf("create fragment %q: %w", fragment.Title, err)
			}
			link := models.StationFragment{
				StationID:  record.ID,
				FragmentID: fragRecord.ID,
				Active:     true,
				Rank:       rank,
			}
			if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
				return fmt.Errorf("assign fragment %q: %w", fragment.Title, err)
			}
		}

		for rank, name := range station.Scripts {
			scriptID, ok := scriptIDs[name]
			if !ok {
				return fmt.Errorf("station %q references unknown script %q", station.Slug, name)
			}
			link := models.StationScript{
				StationID: record.ID,
				ScriptID:  scriptID,
				Rank:      rank,
				Active:    true,
			}
			if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
				return fmt.Errorf("attach script %q: %w", name, err)
			}
		}
	}

	s.logger.Info().
		Int("stations", len(file.Stations)).
		Int("scripts", len(file.Scripts)).
		Msg("catalogue bootstrapped")
	return nil
}
