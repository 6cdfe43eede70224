/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"testing"
	"time"
)

func TestSceneWeekdayActive(t *testing.T) {
	tests := []struct {
		name     string
		weekdays string
		day      time.Weekday
		want     bool
	}{
		{"empty means every day", "", time.Wednesday, true},
		{"listed day", "1,3,5", time.Wednesday, true},
		{"unlisted day", "1,3,5", time.Sunday, false},
		{"spaces tolerated", "0, 6", time.Saturday, true},
		{"garbage entries skipped", "x,3", time.Wednesday, true},
		{"garbage only", "x,y", time.Wednesday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := Scene{Weekdays: tt.weekdays}
			if got := scene.WeekdayActive(tt.day); got != tt.want {
				t.Errorf("WeekdayActive(%v) with %q = %v, want %v", tt.day, tt.weekdays, got, tt.want)
			}
		})
	}
}

func TestStationLocation(t *testing.T) {
	lisbon := Station{Timezone: "Europe/Lisbon"}
	if lisbon.Location().String() != "Europe/Lisbon" {
		t.Errorf("location = %s", lisbon.Location())
	}

	for _, s := range []Station{{}, {Timezone: "Mars/Olympus"}} {
		if s.Location() != time.UTC {
			t.Errorf("timezone %q did not fall back to UTC", s.Timezone)
		}
	}
}

func TestFragmentDisplayName(t *testing.T) {
	withArtist := SoundFragment{Title: "Song", Artist: "Band"}
	if withArtist.DisplayName() != "Band - Song" {
		t.Errorf("display = %q", withArtist.DisplayName())
	}
	titleOnly := SoundFragment{Title: "Jingle"}
	if titleOnly.DisplayName() != "Jingle" {
		t.Errorf("display = %q", titleOnly.DisplayName())
	}
}
