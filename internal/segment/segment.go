/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package segment holds the streamable unit and the per-station sliding
// window it lives in.
package segment

import (
	"time"
)

// Segment is the atomic streamable unit: a fixed-duration chunk of encoded
// audio. Immutable once created.
type Segment struct {
	Sequence  int64 // Assigned by the buffer on append, contiguous per station
	Data      []byte
	Duration  time.Duration
	SourceID  string // Identity of the originating content item
	Metadata  string // Human readable, e.g. "Artist - Title"
	CreatedAt time.Time
}
