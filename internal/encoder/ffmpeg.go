/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openairworks/aether_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// FFmpeg invokes the ffmpeg binary as a batch subprocess. The binary is not
// assumed to be thread-safe in any shared sense; concurrent invocations must
// use independent input/output paths, which callers guarantee via per-station
// scratch directories.
type FFmpeg struct {
	bin    string
	logger zerolog.Logger
}

// NewFFmpeg creates an encoder around the given ffmpeg binary.
func NewFFmpeg(bin string, logger zerolog.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, logger: logger}
}

// Premix mixes speech over a song bed. The bed is ducked under the voice via
// sidechain compression and recovers when the speech ends. A leading gap is
// applied to the speech with adelay.
func (f *FFmpeg) Premix(ctx context.Context, req MixRequest) error {
	start := time.Now()
	defer func() {
		telemetry.EncodeDuration.WithLabelValues("premix").Observe(time.Since(start).Seconds())
	}()

	gapMS := int(req.GapSeconds * 1000)
	if gapMS < 0 {
		gapMS = 0
	}

	var args []string
	if req.SongPath == "" {
		// Speech over silence: pad the front, no bed to duck.
		args = []string{
			"-y", "-i", req.SpeechPath,
			"-af", fmt.Sprintf("adelay=%d|%d", gapMS, gapMS),
			"-c:a", "libmp3lame",
			req.OutputPath,
		}
	} else {
		filter := fmt.Sprintf(
			"[1:a]adelay=%d|%d[voice];"+
				"[0:a][voice]sidechaincompress=threshold=0.05:ratio=8:attack=50:release=500[bed];"+
				"[bed][voice]amix=inputs=2:duration=first:dropout_transition=3[mix]",
			gapMS, gapMS)
		args = []string{
			"-y",
			"-i", req.SongPath,
			"-i", req.SpeechPath,
			"-filter_complex", filter,
			"-map", "[mix]",
			"-c:a", "libmp3lame",
			req.OutputPath,
		}
	}

	if err := f.run(ctx, "premix", args); err != nil {
		return err
	}
	return nil
}

// Slice cuts the input into fixed-duration CBR segments with embedded
// metadata, using the segment muxer.
func (f *FFmpeg) Slice(ctx context.Context, req SliceRequest) ([]SegmentFile, error) {
	start := time.Now()
	defer func() {
		telemetry.EncodeDuration.WithLabelValues("slice").Observe(time.Since(start).Seconds())
	}()

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}

	pattern := filepath.Join(req.OutputDir, "seg_%05d.mp3")
	args := []string{
		"-y",
		"-i", req.InputPath,
		"-vn",
		"-map", "0:a:0",
		"-map_metadata", "-1",
		"-metadata", "title=" + req.Title,
		"-metadata", "artist=" + req.Artist,
		"-ar", "44100",
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", req.BitrateKbps),
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", req.SegmentSeconds),
		"-segment_format", "mp3",
		pattern,
	}

	if err := f.run(ctx, "slice", args); err != nil {
		return nil, err
	}

	return collectSegments(req)
}

// Silence synthesizes a silence-only file from the anullsrc source.
func (f *FFmpeg) Silence(ctx context.Context, req SilenceRequest) error {
	start := time.Now()
	defer func() {
		telemetry.EncodeDuration.WithLabelValues("silence").Observe(time.Since(start).Seconds())
	}()

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", fmt.Sprintf("%d", req.Seconds),
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", req.BitrateKbps),
		req.OutputPath,
	}
	return f.run(ctx, "silence", args)
}

func (f *FFmpeg) run(ctx context.Context, stage string, args []string) error {
	cmd := exec.CommandContext(ctx, f.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.logger.Debug().Str("stage", stage).Strs("args", args).Msg("invoking encoder")

	if err := cmd.Run(); err != nil {
		telemetry.EncodeFailuresTotal.WithLabelValues(stage).Inc()
		tail := stderrTail(stderr.String(), 6)
		f.logger.Warn().Str("stage", stage).Str("stderr", tail).Err(err).Msg("encoder invocation failed")
		return fmt.Errorf("%w: %s: %v (%s)", ErrEncodeFailed, stage, err, tail)
	}
	return nil
}

// collectSegments reads the sliced files back in order. Full segments carry
// the fixed duration; the final one is estimated from its CBR byte size.
func collectSegments(req SliceRequest) ([]SegmentFile, error) {
	entries, err := os.ReadDir(req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("read segment dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "seg_") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: slice produced no segments", ErrEncodeFailed)
	}
	sort.Strings(names)

	fixed := time.Duration(req.SegmentSeconds) * time.Second
	out := make([]SegmentFile, 0, len(names))
	for i, name := range names {
		path := filepath.Join(req.OutputDir, name)
		duration := fixed
		if i == len(names)-1 {
			if info, statErr := os.Stat(path); statErr == nil && req.BitrateKbps > 0 {
				estimated := time.Duration(float64(info.Size()*8)/float64(req.BitrateKbps*1000)*float64(time.Second))
				if estimated > 0 && estimated < fixed {
					duration = estimated
				}
			}
		}
		out = append(out, SegmentFile{Path: path, Duration: duration})
	}
	return out, nil
}

func stderrTail(s string, lines int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
