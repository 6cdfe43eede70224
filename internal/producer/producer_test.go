/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package producer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openairworks/aether_radio/internal/content"
	"github.com/openairworks/aether_radio/internal/encoder"
)

// fakeEncoder records calls and writes placeholder files where the real
// encoder would.
type fakeEncoder struct {
	premixed  []encoder.MixRequest
	sliced    []encoder.SliceRequest
	silenced  []encoder.SilenceRequest
	segments  int
	sliceFail error
}

func (f *fakeEncoder) Premix(ctx context.Context, req encoder.MixRequest) error {
	f.premixed = append(f.premixed, req)
	return os.WriteFile(req.OutputPath, []byte("merged"), 0o644)
}

func (f *fakeEncoder) Slice(ctx context.Context, req encoder.SliceRequest) ([]encoder.SegmentFile, error) {
	f.sliced = append(f.sliced, req)
	if f.sliceFail != nil {
		return nil, f.sliceFail
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, err
	}
	n := f.segments
	if n == 0 {
		n = 2
	}
	files := make([]encoder.SegmentFile, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(req.OutputDir, "seg_"+string(rune('a'+i))+".mp3")
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			return nil, err
		}
		files = append(files, encoder.SegmentFile{Path: path, Duration: time.Duration(req.SegmentSeconds) * time.Second})
	}
	return files, nil
}

func (f *fakeEncoder) Silence(ctx context.Context, req encoder.SilenceRequest) error {
	f.silenced = append(f.silenced, req)
	return os.WriteFile(req.OutputPath, []byte("silence"), 0o644)
}

func writeTempAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("song-bytes"), 0o644); err != nil {
		t.Fatalf("write audio fixture: %v", err)
	}
	return path
}

func TestProduceFragment(t *testing.T) {
	enc := &fakeEncoder{}
	p := New(enc, nil, t.TempDir(), 10, zerolog.Nop())

	song := writeTempAudio(t, "song.mp3")
	item := content.Item{
		Kind:       content.KindFragment,
		FragmentID: "frag-1",
		Title:      "Song",
		Artist:     "Band",
		AudioPath:  song,
	}

	segments, err := p.Produce(context.Background(), "test-fm", 128, item)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	for _, seg := range segments {
		if len(seg.Data) == 0 {
			t.Error("segment carries no audio bytes")
		}
		if seg.SourceID != "frag-1" {
			t.Errorf("source = %q, want frag-1", seg.SourceID)
		}
		if seg.Metadata != "Band - Song" {
			t.Errorf("metadata = %q", seg.Metadata)
		}
		if seg.Duration != 10*time.Second {
			t.Errorf("duration = %s", seg.Duration)
		}
	}

	if len(enc.sliced) != 1 {
		t.Fatalf("slice called %d times", len(enc.sliced))
	}
	if enc.sliced[0].InputPath != song {
		t.Errorf("sliced %q, want the local song file", enc.sliced[0].InputPath)
	}
	if enc.sliced[0].BitrateKbps != 128 || enc.sliced[0].SegmentSeconds != 10 {
		t.Errorf("slice request carried %d kbps / %d s", enc.sliced[0].BitrateKbps, enc.sliced[0].SegmentSeconds)
	}
	if len(enc.premixed) != 0 || len(enc.silenced) != 0 {
		t.Error("fragment production invoked premix or silence")
	}
}

func TestProduceSpeechPremixesOverBed(t *testing.T) {
	enc := &fakeEncoder{}
	p := New(enc, nil, t.TempDir(), 10, zerolog.Nop())

	bed := writeTempAudio(t, "bed.mp3")
	item := content.Item{
		Kind:        content.KindSpeech,
		FragmentID:  "bed-1",
		Title:       "Noon News",
		AudioPath:   bed,
		SpeechAudio: []byte("speech-bytes"),
		GapSeconds:  1,
	}

	segments, err := p.Produce(context.Background(), "test-fm", 128, item)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("no segments produced")
	}
	if segments[0].SourceID != "speech+bed-1" {
		t.Errorf("source = %q", segments[0].SourceID)
	}

	if len(enc.premixed) != 1 {
		t.Fatalf("premix called %d times", len(enc.premixed))
	}
	mix := enc.premixed[0]
	if mix.SongPath != bed {
		t.Errorf("bed path = %q", mix.SongPath)
	}
	if mix.GapSeconds != 1 {
		t.Errorf("gap = %v", mix.GapSeconds)
	}

	// The speech audio must have been written out for the encoder.
	data, err := os.ReadFile(mix.SpeechPath)
	if err != nil {
		t.Fatalf("speech file: %v", err)
	}
	if string(data) != "speech-bytes" {
		t.Errorf("speech file contents = %q", data)
	}

	// The slicer consumes the merged output, not the raw inputs.
	if enc.sliced[0].InputPath != mix.OutputPath {
		t.Errorf("sliced %q, want merged output %q", enc.sliced[0].InputPath, mix.OutputPath)
	}
}

func TestProduceSpeechWithoutBed(t *testing.T) {
	enc := &fakeEncoder{}
	p := New(enc, nil, t.TempDir(), 10, zerolog.Nop())

	item := content.Item{
		Kind:        content.KindSpeech,
		Title:       "Station ID",
		SpeechAudio: []byte("speech"),
	}

	segments, err := p.Produce(context.Background(), "test-fm", 128, item)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if segments[0].SourceID != "speech" {
		t.Errorf("source = %q, want speech", segments[0].SourceID)
	}
	if enc.premixed[0].SongPath != "" {
		t.Errorf("bed path = %q, want empty for speech over silence", enc.premixed[0].SongPath)
	}
}

func TestProduceFillerUsesSilence(t *testing.T) {
	enc := &fakeEncoder{}
	p := New(enc, nil, t.TempDir(), 10, zerolog.Nop())

	segments, err := p.Produce(context.Background(), "test-fm", 96, content.Item{Kind: content.KindFiller, Title: "silence"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if segments[0].SourceID != "filler" {
		t.Errorf("source = %q, want filler", segments[0].SourceID)
	}
	if len(enc.silenced) != 1 {
		t.Fatalf("silence called %d times", len(enc.silenced))
	}
	if enc.silenced[0].Seconds != 10 || enc.silenced[0].BitrateKbps != 96 {
		t.Errorf("silence request = %+v", enc.silenced[0])
	}
}

func TestProduceScratchLayout(t *testing.T) {
	enc := &fakeEncoder{}
	scratch := t.TempDir()
	p := New(enc, nil, scratch, 10, zerolog.Nop())

	song := writeTempAudio(t, "song.mp3")
	_, err := p.Produce(context.Background(), "test-fm", 128, content.Item{
		Kind:      content.KindFragment,
		AudioPath: song,
	})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}

	// scratch/<day>/<station>/<run>/segments
	day := time.Now().UTC().Format("2006-01-02")
	stationDir := filepath.Join(scratch, day, "test-fm")
	runs, err := os.ReadDir(stationDir)
	if err != nil || len(runs) != 1 {
		t.Fatalf("run dir layout wrong under %s: %v", stationDir, err)
	}
}

func TestProduceMissingAudio(t *testing.T) {
	enc := &fakeEncoder{}
	p := New(enc, nil, t.TempDir(), 10, zerolog.Nop())

	_, err := p.Produce(context.Background(), "test-fm", 128, content.Item{
		Kind:       content.KindFragment,
		FragmentID: "frag-1",
		AudioPath:  "/nonexistent/song.mp3",
	})
	if err == nil {
		t.Fatal("expected error for missing audio with no storage fallback")
	}
}
