/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package content defines the playable unit handed from the scheduler to the
// producer: a stored sound fragment, an ephemeral AI utterance over a bed
// track, or silence filler.
package content

// Kind discriminates the content variants.
type Kind string

const (
	KindFragment Kind = "fragment"
	KindSpeech   Kind = "speech"
	KindFiller   Kind = "filler"
)

// Item is one playable unit. Exactly one variant is populated per Kind:
// fragments carry FragmentID plus a path or storage key, speech additionally
// carries the synthesized audio and transcript (the fragment fields then
// describe the optional bed track), filler carries nothing but display
// metadata. Speech audio lives only for the pipeline run that produced it.
type Item struct {
	Kind        Kind
	FragmentID  string // Set for fragments and for the bed track under speech
	Title       string
	Artist      string
	AudioPath   string // Local path of the song audio, when already on disk
	StorageKey  string // Object storage key, when the audio must be fetched
	SpeechAudio []byte // Synthesized speech, ephemeral
	Transcript  string
	GapSeconds  float64 // Silence inserted before the speech during pre-mix
}

// Display renders the human readable metadata string embedded in segments.
func (i Item) Display() string {
	if i.Artist == "" {
		return i.Title
	}
	return i.Artist + " - " + i.Title
}
