/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package encoder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCollectSegmentsOrdersAndEstimatesTail(t *testing.T) {
	dir := t.TempDir()

	// 10s at 128 kbps is 160000 bytes; the tail below is half a segment.
	full := make([]byte, 160000)
	half := make([]byte, 80000)
	for name, data := range map[string][]byte{
		"seg_00002.mp3": half,
		"seg_00000.mp3": full,
		"seg_00001.mp3": full,
		"cover.jpg":     {1},
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	files, err := collectSegments(SliceRequest{OutputDir: dir, SegmentSeconds: 10, BitrateKbps: 128})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d segments, want 3 (foreign files ignored)", len(files))
	}
	for i, want := range []string{"seg_00000.mp3", "seg_00001.mp3", "seg_00002.mp3"} {
		if filepath.Base(files[i].Path) != want {
			t.Errorf("position %d holds %s, want %s", i, filepath.Base(files[i].Path), want)
		}
	}

	if files[0].Duration != 10*time.Second || files[1].Duration != 10*time.Second {
		t.Errorf("full segment durations = %s, %s", files[0].Duration, files[1].Duration)
	}
	tail := files[2].Duration
	if tail < 4*time.Second || tail > 6*time.Second {
		t.Errorf("tail duration = %s, want roughly 5s from byte size", tail)
	}
}

func TestCollectSegmentsEmptyDir(t *testing.T) {
	if _, err := collectSegments(SliceRequest{OutputDir: t.TempDir(), SegmentSeconds: 10}); err == nil {
		t.Fatal("expected error for a slice run that produced nothing")
	}
}

func TestStderrTail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lines int
		want  string
	}{
		{"empty", "", 3, ""},
		{"short", "one\ntwo", 3, "one\ntwo"},
		{"truncated", "a\nb\nc\nd\ne", 2, "d\ne"},
		{"trailing newline", "x\ny\n", 5, "x\ny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stderrTail(tt.input, tt.lines); got != tt.want {
				t.Errorf("stderrTail(%q, %d) = %q, want %q", tt.input, tt.lines, got, tt.want)
			}
		})
	}
}
