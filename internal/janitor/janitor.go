/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package janitor prunes the scratch tree. Scratch files are never the
// source of truth, so deletion is always safe.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/openairworks/aether_radio/internal/events"
	"github.com/openairworks/aether_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

const dayLayout = "2006-01-02"

// Janitor removes date-named scratch directories older than the retention
// window on a fixed interval, independent of any station's tick.
type Janitor struct {
	root      string
	retention time.Duration
	interval  time.Duration
	bus       *events.Bus
	logger    zerolog.Logger

	now func() time.Time // Test hook
}

// New creates a janitor for the scratch root.
func New(root string, retentionDays int, interval time.Duration, bus *events.Bus, logger zerolog.Logger) *Janitor {
	if retentionDays < 1 {
		retentionDays = 1
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		root:      root,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps until context cancellation.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info().Str("root", j.root).Dur("interval", j.interval).Msg("janitor started")
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			reclaimed := j.Sweep()
			if reclaimed > 0 && j.bus != nil {
				j.bus.Publish(events.EventJanitorSweep, events.Payload{"reclaimed": reclaimed})
			}
		}
	}
}

// Sweep deletes expired date directories and returns the number of files and
// directories reclaimed. A failure on one entry never aborts the remainder.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn().Err(err).Str("root", j.root).Msg("scratch root unreadable")
		}
		return 0
	}

	cutoff := j.now().UTC().Add(-j.retention)
	reclaimed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.Parse(dayLayout, entry.Name())
		if err != nil {
			// Not a date directory; leave it alone.
			continue
		}
		// A day expires once its end falls behind the cutoff.
		if day.Add(24 * time.Hour).After(cutoff) {
			continue
		}

		path := filepath.Join(j.root, entry.Name())
		count := countEntries(path)
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn().Err(err).Str("dir", path).Msg("failed to remove scratch directory")
			continue
		}
		reclaimed += count
		j.logger.Info().Str("dir", path).Int("files", count).Msg("scratch directory reclaimed")
	}

	if reclaimed > 0 {
		telemetry.JanitorReclaimedTotal.Add(float64(reclaimed))
	}
	return reclaimed
}

// countEntries counts files and directories under path, including path.
func countEntries(path string) int {
	count := 0
	_ = filepath.WalkDir(path, func(string, os.DirEntry, error) error {
		count++
		return nil
	})
	return count
}
