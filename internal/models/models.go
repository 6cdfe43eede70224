/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strconv"
	"strings"
	"time"
)

// ManagedBy enumerates how a station's playout is controlled.
type ManagedBy string

const (
	ManagedSelf      ManagedBy = "SELF"      // Manual / fixed playlist, no agent involvement
	ManagedItself    ManagedBy = "ITSELF"    // AI agent driven
	ManagedScheduled ManagedBy = "SCHEDULED" // Calendar driven
)

// Station is one broadcast brand.
type Station struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Slug        string `gorm:"uniqueIndex"`
	Name        string
	Country     string `gorm:"type:varchar(8)"`
	Timezone    string `gorm:"type:varchar(48)"`
	BitrateKbps int
	ManagedBy   ManagedBy `gorm:"type:varchar(16)"`
	AgentID     string    `gorm:"type:uuid"`
	ProfileID   string    `gorm:"type:uuid"`
	Popularity  int
	Archived    bool
	Scripts     []StationScript
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Location reports the station's time zone, falling back to UTC.
func (s *Station) Location() *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// SoundFragment is a stored audio asset (song, jingle, ad).
type SoundFragment struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Title      string `gorm:"index"`
	Artist     string `gorm:"index"`
	Genre      string
	Album      string
	Duration   time.Duration
	StorageKey string // Object storage key; empty when Path points at a local file
	Path       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName renders the human readable "Artist - Title" metadata string.
func (f *SoundFragment) DisplayName() string {
	if f.Artist == "" {
		return f.Title
	}
	return f.Artist + " - " + f.Title
}

// StationFragment assigns a fragment to a station and tracks rotation state.
// PlayedCount is monotonically non-decreasing and feeds fairness only.
type StationFragment struct {
	StationID    string `gorm:"type:uuid;primaryKey"`
	FragmentID   string `gorm:"type:uuid;primaryKey"`
	Active       bool   `gorm:"default:true"`
	Rank         int
	PlayedCount  int64
	LastPlayedAt *time.Time
	Fragment     SoundFragment `gorm:"foreignKey:FragmentID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Script groups scenes and prompts for agent driven speech.
type Script struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Scenes    []Scene
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StationScript attaches a script to a station with per-station overrides.
type StationScript struct {
	StationID string `gorm:"type:uuid;primaryKey"`
	ScriptID  string `gorm:"type:uuid;primaryKey"`
	Rank      int
	Active    bool           `gorm:"default:true"`
	Variables map[string]any `gorm:"serializer:json"`
	Script    Script         `gorm:"foreignKey:ScriptID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scene is a time/weekday scoped rule that triggers AI speech insertion.
type Scene struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	ScriptID    string `gorm:"type:uuid;index"`
	Name        string
	StartTime   string `gorm:"type:varchar(5)"` // "HH:MM" wall clock in the station's zone
	Weekdays    string `gorm:"type:varchar(32)"` // CSV of time.Weekday numbers; empty means every day
	OneTimeRun  bool
	FiredAt     *time.Time // Set once a one-time scene has fired
	Talkativity float64    // Probability weight in [0,1]; 0 never speaks, 1 always attempts
	Prompts     []Prompt
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WeekdayActive reports whether the scene's weekday set includes day.
func (s *Scene) WeekdayActive(day time.Weekday) bool {
	if s.Weekdays == "" {
		return true
	}
	for _, part := range strings.Split(s.Weekdays, ",") {
		if parsed, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && parsed == int(day) {
			return true
		}
	}
	return false
}

// Prompt is one ordered instruction realized as speech by the AI collaborator.
type Prompt struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	SceneID   string `gorm:"type:uuid;index"`
	Rank      int
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
