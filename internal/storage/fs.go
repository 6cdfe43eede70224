/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Filesystem implements Storage on a local directory tree.
type Filesystem struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystem creates a filesystem-based storage backend.
func NewFilesystem(rootDir string, logger zerolog.Logger) *Filesystem {
	return &Filesystem{rootDir: rootDir, logger: logger}
}

// Fetch opens a file under the root.
func (fs *Filesystem) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(fs.rootDir, key))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return file, nil
}

// Store saves a file under the root, creating parent directories.
func (fs *Filesystem) Store(ctx context.Context, key string, body io.Reader) (string, error) {
	fullPath := filepath.Join(fs.rootDir, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, body); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	fs.logger.Debug().Str("key", key).Msg("filesystem storage: file stored")
	return key, nil
}

// Delete removes a file from the filesystem.
func (fs *Filesystem) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(fs.rootDir, key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// CheckAccess verifies the root directory exists and is a directory.
func (fs *Filesystem) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("media root does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", fs.rootDir)
	}
	return nil
}
