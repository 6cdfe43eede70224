/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Errorf("db backend = %q", cfg.DBBackend)
	}
	if cfg.SegmentSeconds != 10 {
		t.Errorf("segment seconds = %d", cfg.SegmentSeconds)
	}
	if cfg.MinSegments != 3 || cfg.MaxSegments != 12 {
		t.Errorf("window = [%d,%d]", cfg.MinSegments, cfg.MaxSegments)
	}
	if cfg.TickInterval != 10*time.Second {
		t.Errorf("tick interval = %s", cfg.TickInterval)
	}
	if cfg.RetentionDays != 2 {
		t.Errorf("retention days = %d", cfg.RetentionDays)
	}
	if cfg.StorageBackend != "fs" {
		t.Errorf("storage backend = %q", cfg.StorageBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AETHER_ENV", "production")
	t.Setenv("AETHER_SEGMENT_SECONDS", "6")
	t.Setenv("AETHER_MIN_SEGMENTS", "4")
	t.Setenv("AETHER_MAX_SEGMENTS", "20")
	t.Setenv("AETHER_TICK_INTERVAL", "5s")
	t.Setenv("AETHER_ONLINE_WELL_GRACE", "90s")
	t.Setenv("AETHER_TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.SegmentSeconds != 6 {
		t.Errorf("segment seconds = %d", cfg.SegmentSeconds)
	}
	if cfg.MinSegments != 4 || cfg.MaxSegments != 20 {
		t.Errorf("window = [%d,%d]", cfg.MinSegments, cfg.MaxSegments)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Errorf("tick interval = %s", cfg.TickInterval)
	}
	if cfg.OnlineWellGrace != 90*time.Second {
		t.Errorf("grace = %s", cfg.OnlineWellGrace)
	}
	if cfg.TracingSampleRate != 0.25 {
		t.Errorf("sample rate = %v", cfg.TracingSampleRate)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad backend", map[string]string{"AETHER_DB_BACKEND": "oracle"}},
		{"zero segment seconds", map[string]string{"AETHER_SEGMENT_SECONDS": "0"}},
		{"inverted window", map[string]string{"AETHER_MIN_SEGMENTS": "8", "AETHER_MAX_SEGMENTS": "4"}},
		{"bad storage backend", map[string]string{"AETHER_STORAGE_BACKEND": "tape"}},
		{"s3 without bucket", map[string]string{"AETHER_STORAGE_BACKEND": "s3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("AETHER_MIN_SEGMENTS", "three")
	t.Setenv("AETHER_TICK_INTERVAL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MinSegments != 3 {
		t.Errorf("min segments = %d, want default", cfg.MinSegments)
	}
	if cfg.TickInterval != 10*time.Second {
		t.Errorf("tick interval = %s, want default", cfg.TickInterval)
	}
}
