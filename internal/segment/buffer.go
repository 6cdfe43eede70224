/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package segment

import (
	"errors"
	"sync"
)

// ErrGap reports a sequence discontinuity in the window. The owning station
// must reset the buffer and re-enter warm-up.
var ErrGap = errors.New("segment buffer: sequence gap")

// Buffer is a sequence-numbered bounded sliding window of segments for one
// station. Exactly one producer appends (the station's own tick); many
// listener connections read concurrently. Readers get copies of the slice
// header so appends never block an in-flight manifest build.
type Buffer struct {
	mu      sync.RWMutex
	min     int
	max     int
	nextSeq int64
	window  []*Segment
}

// NewBuffer creates an empty buffer with the given window bounds.
func NewBuffer(minSegments, maxSegments int) *Buffer {
	if minSegments < 1 {
		minSegments = 1
	}
	if maxSegments < minSegments {
		maxSegments = minSegments
	}
	return &Buffer{min: minSegments, max: maxSegments}
}

// Append assigns the next sequence numbers to segs in order, adds them to the
// tail, and evicts from the head while the window exceeds its bound. Returns
// ErrGap if the resulting window is not contiguous.
func (b *Buffer) Append(segs []*Segment) error {
	if len(segs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, seg := range segs {
		seg.Sequence = b.nextSeq
		b.nextSeq++
	}

	window := append(b.window, segs...)
	if len(window) > b.max {
		window = window[len(window)-b.max:]
	}

	for i := 1; i < len(window); i++ {
		if window[i].Sequence != window[i-1].Sequence+1 {
			return ErrGap
		}
	}

	// Re-slice into fresh backing storage so readers holding a previous
	// snapshot never observe the eviction shift.
	b.window = append(make([]*Segment, 0, len(window)), window...)
	return nil
}

// Window returns a point-in-time snapshot of the current window, oldest first.
func (b *Buffer) Window() []*Segment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Segment, len(b.window))
	copy(out, b.window)
	return out
}

// Get returns the segment with the given sequence number if it is still in
// the window.
func (b *Buffer) Get(sequence int64) (*Segment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.window) == 0 {
		return nil, false
	}
	first := b.window[0].Sequence
	idx := sequence - first
	if idx < 0 || idx >= int64(len(b.window)) {
		return nil, false
	}
	return b.window[idx], true
}

// NextSequence returns the sequence number the next appended segment will
// receive.
func (b *Buffer) NextSequence() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Len returns the current window length.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.window)
}

// WarmedUp reports whether the window has reached its low watermark.
func (b *Buffer) WarmedUp() bool {
	return b.Len() >= b.min
}

// Min returns the window low watermark.
func (b *Buffer) Min() int { return b.min }

// Max returns the window high watermark.
func (b *Buffer) Max() int { return b.max }

// Reset discards all segments and restarts sequence numbering from zero.
// Only the owning station may call this, after an invariant violation.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window = nil
	b.nextSeq = 0
}
