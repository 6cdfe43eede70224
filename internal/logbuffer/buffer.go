/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log lines in memory so operators
// can read them over the API without shell access to the host.
package logbuffer

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"
)

// Entry is one parsed log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a fixed-capacity ring of log entries. It implements io.Writer so
// it can sit alongside the console writer in a zerolog MultiLevelWriter.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Write parses a zerolog JSON line and records it. Lines that are not valid
// JSON are stored raw under the message field.
func (b *Buffer) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		b.add(parseLine(line))
	}
	return len(p), nil
}

func (b *Buffer) add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Recent returns up to n entries, oldest first.
func (b *Buffer) Recent(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.count {
		n = b.count
	}

	start := b.head - n
	if start < 0 {
		start += b.capacity
	}

	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

func parseLine(line []byte) Entry {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{Timestamp: time.Now(), Level: "unknown", Message: string(line)}
	}

	entry := Entry{Timestamp: time.Now()}
	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
		delete(raw, "level")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	switch ts := raw["time"].(type) {
	case float64: // zerolog.TimeFormatUnix
		entry.Timestamp = time.Unix(int64(ts), 0)
		delete(raw, "time")
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Timestamp = parsed
		}
		delete(raw, "time")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}
