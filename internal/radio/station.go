/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package radio owns the station pool: per-station runtime state, the
// lifecycle state machine, and the supervisor that drives production ticks.
package radio

import (
	"sync"
	"time"

	"github.com/openairworks/aether_radio/internal/models"
	"github.com/openairworks/aether_radio/internal/segment"
)

// Status is the station lifecycle state. Transitions are driven solely by the
// supervisor.
type Status string

const (
	StatusWarmingUp  Status = "WARMING_UP"
	StatusOnline     Status = "ONLINE"
	StatusOnlineWell Status = "ONLINE_WELL"
	StatusOffline    Status = "OFFLINE"
)

// statusCode maps statuses onto the gauge scale exported to dashboards.
func statusCode(s Status) float64 {
	switch s {
	case StatusWarmingUp:
		return 1
	case StatusOnline:
		return 2
	case StatusOnlineWell:
		return 3
	default:
		return 0
	}
}

// Station is one active pool member: configuration snapshot plus runtime
// state. The buffer is owned here and discarded on deactivation.
type Station struct {
	model        *models.Station
	buffer       *segment.Buffer
	ephemeral    bool
	expiresAt    time.Time
	scriptFilter []string // Non-nil restricts scenes for ephemeral streams

	mu           sync.Mutex
	status       Status
	failCount    int
	healthySince time.Time
	nowPlaying   string
	startedAt    time.Time

	cancel func()
	done   chan struct{}
}

// Slug returns the pool identity of the station.
func (st *Station) Slug() string { return st.model.Slug }

// Model returns the configuration snapshot loaded at activation.
func (st *Station) Model() *models.Station { return st.model }

// Buffer returns the station's sliding window.
func (st *Station) Buffer() *segment.Buffer { return st.buffer }

// Status returns the current lifecycle state.
func (st *Station) Status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status
}

// NowPlaying returns the metadata of the most recently appended content.
func (st *Station) NowPlaying() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.nowPlaying
}

// StationView is the snapshot shape consumed by dashboards and AI tooling.
type StationView struct {
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	ManagedBy    string    `json:"managed_by"`
	NowPlaying   string    `json:"now_playing"`
	BufferLen    int       `json:"buffer_len"`
	NextSequence int64     `json:"next_sequence"`
	Ephemeral    bool      `json:"ephemeral"`
	StartedAt    time.Time `json:"started_at"`
}

// View builds a point-in-time view of the station.
func (st *Station) View() StationView {
	st.mu.Lock()
	status := st.status
	nowPlaying := st.nowPlaying
	startedAt := st.startedAt
	st.mu.Unlock()

	return StationView{
		Slug:         st.model.Slug,
		Name:         st.model.Name,
		Status:       status,
		ManagedBy:    string(st.model.ManagedBy),
		NowPlaying:   nowPlaying,
		BufferLen:    st.buffer.Len(),
		NextSequence: st.buffer.NextSequence(),
		Ephemeral:    st.ephemeral,
		StartedAt:    startedAt,
	}
}
