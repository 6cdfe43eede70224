/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"fmt"
	"testing"
)

func TestWriteParsesZerologLines(t *testing.T) {
	b := New(10)

	line := `{"level":"info","station":"test-fm","time":1772100000,"message":"station activated"}` + "\n"
	if _, err := b.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries := b.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	entry := entries[0]
	if entry.Level != "info" || entry.Message != "station activated" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["station"] != "test-fm" {
		t.Errorf("fields = %v", entry.Fields)
	}
	if entry.Timestamp.Unix() != 1772100000 {
		t.Errorf("timestamp = %v", entry.Timestamp)
	}
}

func TestNonJSONLinesKeptRaw(t *testing.T) {
	b := New(10)
	if _, err := b.Write([]byte("plain text line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries := b.Recent(0)
	if len(entries) != 1 || entries[0].Message != "plain text line" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		line := fmt.Sprintf(`{"level":"info","message":"m%d"}`+"\n", i)
		if _, err := b.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if b.Len() != 3 {
		t.Fatalf("len = %d, want capacity 3", b.Len())
	}
	entries := b.Recent(0)
	for i, want := range []string{"m2", "m3", "m4"} {
		if entries[i].Message != want {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Message, want)
		}
	}

	// Recent with a smaller n returns only the newest.
	newest := b.Recent(1)
	if len(newest) != 1 || newest[0].Message != "m4" {
		t.Errorf("recent(1) = %+v", newest)
	}
}
