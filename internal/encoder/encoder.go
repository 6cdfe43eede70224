/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package encoder wraps the external media encoder. The broadcast core only
// depends on the Encoder interface so tests and future engines can substitute
// the subprocess implementation.
package encoder

import (
	"context"
	"errors"
	"time"
)

// ErrEncodeFailed reports a non-zero exit or malformed output from the
// external encoder.
var ErrEncodeFailed = errors.New("external encoder failed")

// SegmentFile is one sliced segment on disk.
type SegmentFile struct {
	Path     string
	Duration time.Duration
}

// MixRequest pre-mixes speech over a song bed into one composite file.
// The song is ducked under the speech and recovers once the speech ends.
type MixRequest struct {
	SongPath   string  // Bed track; empty means speech over silence
	SpeechPath string
	GapSeconds float64 // Silence inserted before the speech starts
	OutputPath string
}

// SliceRequest cuts one audio file into fixed-duration segments with
// embedded title/artist metadata.
type SliceRequest struct {
	InputPath      string
	OutputDir      string
	SegmentSeconds int
	BitrateKbps    int
	Title          string
	Artist         string
}

// SilenceRequest synthesizes a silence file of the given length.
type SilenceRequest struct {
	Seconds     int
	BitrateKbps int
	OutputPath  string
}

// Encoder is the narrow contract the broadcast core invokes.
type Encoder interface {
	// Premix combines speech, optional leading silence, and a song bed into
	// one composite audio file at req.OutputPath.
	Premix(ctx context.Context, req MixRequest) error
	// Slice cuts the input into ordered fixed-duration segments. Every
	// segment has the requested duration except possibly the last.
	Slice(ctx context.Context, req SliceRequest) ([]SegmentFile, error)
	// Silence writes a silence-only audio file, used as warm-up filler.
	Silence(ctx context.Context, req SilenceRequest) error
}
