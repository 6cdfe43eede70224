/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package producer turns a scheduled content item into ready-to-serve
// segments via the external encoder.
package producer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/openairworks/aether_radio/internal/content"
	"github.com/openairworks/aether_radio/internal/encoder"
	"github.com/openairworks/aether_radio/internal/segment"
	"github.com/openairworks/aether_radio/internal/storage"
	"github.com/openairworks/aether_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// Producer invokes the encoder and assembles segments. Scratch files are laid
// out scratch/<YYYY-MM-DD>/<station>/<run>/ so the janitor can prune whole
// days and concurrent stations never share temp paths.
type Producer struct {
	enc            encoder.Encoder
	store          storage.Storage
	scratchRoot    string
	segmentSeconds int
	logger         zerolog.Logger
}

// New creates a producer.
func New(enc encoder.Encoder, store storage.Storage, scratchRoot string, segmentSeconds int, logger zerolog.Logger) *Producer {
	return &Producer{
		enc:            enc,
		store:          store,
		scratchRoot:    scratchRoot,
		segmentSeconds: segmentSeconds,
		logger:         logger,
	}
}

// Produce turns one content item into an ordered list of segments for the
// station. The returned segments carry bytes in memory; the scratch files are
// not the source of truth and are left for the janitor.
func (p *Producer) Produce(ctx context.Context, stationSlug string, bitrateKbps int, item content.Item) ([]*segment.Segment, error) {
	ctx, span := telemetry.StartSpan(ctx, "producer", "Produce")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"station": stationSlug,
		"kind":    string(item.Kind),
	})

	runID := uuid.NewString()
	runDir := filepath.Join(p.scratchRoot, time.Now().UTC().Format("2006-01-02"), stationSlug, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	input, sourceID, err := p.prepareInput(ctx, runDir, bitrateKbps, item)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	files, err := p.enc.Slice(ctx, encoder.SliceRequest{
		InputPath:      input,
		OutputDir:      filepath.Join(runDir, "segments"),
		SegmentSeconds: p.segmentSeconds,
		BitrateKbps:    bitrateKbps,
		Title:          item.Title,
		Artist:         item.Artist,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := time.Now().UTC()
	segments := make([]*segment.Segment, 0, len(files))
	for _, file := range files {
		data, readErr := os.ReadFile(file.Path)
		if readErr != nil {
			return nil, fmt.Errorf("%w: read segment %s: %v", encoder.ErrEncodeFailed, file.Path, readErr)
		}
		segments = append(segments, &segment.Segment{
			Data:      data,
			Duration:  file.Duration,
			SourceID:  sourceID,
			Metadata:  item.Display(),
			CreatedAt: now,
		})
	}

	p.logger.Debug().
		Str("station", stationSlug).
		Str("source", sourceID).
		Int("segments", len(segments)).
		Msg("content item segmented")
	return segments, nil
}

// prepareInput materializes the single audio file the slicer consumes.
func (p *Producer) prepareInput(ctx context.Context, runDir string, bitrateKbps int, item content.Item) (string, string, error) {
	switch item.Kind {
	case content.KindFiller:
		out := filepath.Join(runDir, "filler.mp3")
		err := p.enc.Silence(ctx, encoder.SilenceRequest{
			Seconds:     p.segmentSeconds,
			BitrateKbps: bitrateKbps,
			OutputPath:  out,
		})
		if err != nil {
			return "", "", err
		}
		return out, "filler", nil

	case content.KindFragment:
		path, err := p.materializeSong(ctx, runDir, item)
		if err != nil {
			return "", "", err
		}
		return path, item.FragmentID, nil

	case content.KindSpeech:
		speechPath := filepath.Join(runDir, "speech.mp3")
		if err := os.WriteFile(speechPath, item.SpeechAudio, 0o644); err != nil {
			return "", "", fmt.Errorf("write speech audio: %w", err)
		}

		bedPath := ""
		if item.FragmentID != "" || item.AudioPath != "" || item.StorageKey != "" {
			var err error
			bedPath, err = p.materializeSong(ctx, runDir, item)
			if err != nil {
				// A missing bed track degrades to speech over silence.
				p.logger.Warn().Err(err).Msg("bed track unavailable, mixing speech over silence")
				bedPath = ""
			}
		}

		merged := filepath.Join(runDir, "merged.mp3")
		err := p.enc.Premix(ctx, encoder.MixRequest{
			SongPath:   bedPath,
			SpeechPath: speechPath,
			GapSeconds: item.GapSeconds,
			OutputPath: merged,
		})
		if err != nil {
			return "", "", err
		}
		sourceID := "speech"
		if item.FragmentID != "" {
			sourceID = "speech+" + item.FragmentID
		}
		return merged, sourceID, nil

	default:
		return "", "", fmt.Errorf("unknown content kind %q", item.Kind)
	}
}

// materializeSong ensures the fragment audio exists as a local file, fetching
// from object storage when needed.
func (p *Producer) materializeSong(ctx context.Context, runDir string, item content.Item) (string, error) {
	if item.AudioPath != "" {
		if _, err := os.Stat(item.AudioPath); err == nil {
			return item.AudioPath, nil
		}
	}
	if item.StorageKey == "" || p.store == nil {
		return "", fmt.Errorf("no audio available for fragment %q", item.FragmentID)
	}

	body, err := p.store.Fetch(ctx, item.StorageKey)
	if err != nil {
		return "", fmt.Errorf("fetch fragment audio: %w", err)
	}
	defer body.Close()

	local := filepath.Join(runDir, "song"+filepath.Ext(item.StorageKey))
	dest, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create local song file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, body); err != nil {
		return "", fmt.Errorf("download fragment audio: %w", err)
	}
	return local, nil
}
