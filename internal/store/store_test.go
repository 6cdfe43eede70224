/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openairworks/aether_radio/internal/models"
)

func openStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Station{},
		&models.SoundFragment{},
		&models.StationFragment{},
		&models.Script{},
		&models.StationScript{},
		&models.Scene{},
		&models.Prompt{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestStationBySlug(t *testing.T) {
	db := openStoreTestDB(t)
	s := New(db, zerolog.Nop())

	station := &models.Station{ID: uuid.NewString(), Slug: "test-fm", Name: "Test FM"}
	if err := db.Create(station).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	archived := &models.Station{ID: uuid.NewString(), Slug: "old-fm", Archived: true}
	if err := db.Create(archived).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.StationBySlug(context.Background(), "test-fm")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != station.ID {
		t.Errorf("got station %s", got.ID)
	}

	if _, err := s.StationBySlug(context.Background(), "old-fm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("archived station err = %v, want ErrNotFound", err)
	}
	if _, err := s.StationBySlug(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown station err = %v, want ErrNotFound", err)
	}
}

func TestIncrementPlayCount(t *testing.T) {
	db := openStoreTestDB(t)
	s := New(db, zerolog.Nop())

	stationID := uuid.NewString()
	fragmentID := uuid.NewString()
	if err := db.Create(&models.StationFragment{StationID: stationID, FragmentID: fragmentID, Active: true}).Error; err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	at := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := s.IncrementPlayCount(context.Background(), stationID, fragmentID, at); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	var assignment models.StationFragment
	if err := db.First(&assignment, "fragment_id = ?", fragmentID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if assignment.PlayedCount != 3 {
		t.Errorf("played count = %d, want 3", assignment.PlayedCount)
	}
	if assignment.LastPlayedAt == nil || !assignment.LastPlayedAt.Equal(at) {
		t.Errorf("last played = %v", assignment.LastPlayedAt)
	}

	err := s.IncrementPlayCount(context.Background(), stationID, uuid.NewString(), at)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing assignment err = %v, want ErrNotFound", err)
	}
}

const bootstrapYAML = `
scripts:
  - name: morning-voice
    scenes:
      - name: morning greeting
        start_time: "07:00"
        talkativity: 0.8
        prompts:
          - "Greet the listeners and mention the weather."
stations:
  - slug: dawn-fm
    name: Dawn FM
    timezone: Europe/Lisbon
    bitrate_kbps: 128
    managed_by: ITSELF
    scripts: [morning-voice]
    fragments:
      - title: Sunrise
        artist: The Larks
        path: /media/sunrise.mp3
        duration_seconds: 180
`

func TestBootstrapSeedsEmptyCatalogue(t *testing.T) {
	db := openStoreTestDB(t)
	s := New(db, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "stations.yaml")
	if err := os.WriteFile(path, []byte(bootstrapYAML), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	if err := s.Bootstrap(context.Background(), path); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	station, err := s.StationBySlug(context.Background(), "dawn-fm")
	if err != nil {
		t.Fatalf("station lookup: %v", err)
	}
	if station.ManagedBy != models.ManagedItself {
		t.Errorf("managed by = %s", station.ManagedBy)
	}

	assigned, err := s.AssignedFragments(context.Background(), station.ID)
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(assigned) != 1 || assigned[0].Fragment.Title != "Sunrise" {
		t.Fatalf("assignments = %+v", assigned)
	}

	scenes, err := s.ActiveScenes(context.Background(), station.ID)
	if err != nil {
		t.Fatalf("scenes: %v", err)
	}
	if len(scenes) != 1 || len(scenes[0].Prompts) != 1 {
		t.Fatalf("scenes = %+v", scenes)
	}

	// A second run against the now non-empty catalogue is a no-op.
	if err := s.Bootstrap(context.Background(), path); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	var count int64
	if err := db.Model(&models.Station{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("station count after rerun = %d, want 1", count)
	}
}

func TestMarkSceneFired(t *testing.T) {
	db := openStoreTestDB(t)
	s := New(db, zerolog.Nop())

	scene := &models.Scene{ID: uuid.NewString(), Name: "launch", OneTimeRun: true}
	if err := db.Create(scene).Error; err != nil {
		t.Fatalf("create scene: %v", err)
	}

	at := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if err := s.MarkSceneFired(context.Background(), scene.ID, at); err != nil {
		t.Fatalf("mark fired: %v", err)
	}

	var reloaded models.Scene
	if err := db.First(&reloaded, "id = ?", scene.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.FiredAt == nil {
		t.Fatal("fired_at not set")
	}
}

func TestActiveScenesOrderedByScriptRank(t *testing.T) {
	db := openStoreTestDB(t)
	s := New(db, zerolog.Nop())

	station := &models.Station{ID: uuid.NewString(), Slug: "rank-fm", Name: "Rank FM"}
	if err := db.Create(station).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	// Seed out of rank order so insertion order cannot mask the sort.
	addScript := func(name string, rank int, active bool, sceneNames ...string) {
		t.Helper()
		script := &models.Script{ID: uuid.NewString(), Name: name}
		if err := db.Create(script).Error; err != nil {
			t.Fatalf("create script: %v", err)
		}
		link := &models.StationScript{StationID: station.ID, ScriptID: script.ID, Rank: rank, Active: active}
		if err := db.Create(link).Error; err != nil {
			t.Fatalf("create station script: %v", err)
		}
		for i, sceneName := range sceneNames {
			scene := &models.Scene{
				ID:        uuid.NewString(),
				ScriptID:  script.ID,
				Name:      sceneName,
				StartTime: fmt.Sprintf("%02d:00", 8+i),
			}
			if err := db.Create(scene).Error; err != nil {
				t.Fatalf("create scene: %v", err)
			}
		}
	}
	addScript("evening", 2, true, "evening-early", "evening-late")
	addScript("morning", 1, true, "sunrise")
	addScript("retired", 0, false, "never")

	scenes, err := s.ActiveScenes(context.Background(), station.ID)
	if err != nil {
		t.Fatalf("active scenes: %v", err)
	}

	got := make([]string, 0, len(scenes))
	for _, scene := range scenes {
		got = append(got, scene.Name)
	}
	want := []string{"sunrise", "evening-early", "evening-late"}
	if len(got) != len(want) {
		t.Fatalf("scenes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scenes = %v, want script rank order %v", got, want)
		}
	}
}
