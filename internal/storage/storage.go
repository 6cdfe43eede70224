/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage abstracts where fragment audio and AI voice files live.
package storage

import (
	"context"
	"io"
)

// Storage is the object storage collaborator. Keys are opaque hierarchical
// paths owned by the catalogue.
type Storage interface {
	// Fetch opens the object for reading. The caller closes the reader.
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	// Store writes the object and returns the key it was stored under.
	Store(ctx context.Context, key string, body io.Reader) (string, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// CheckAccess verifies the backend is reachable.
	CheckAccess(ctx context.Context) error
}
