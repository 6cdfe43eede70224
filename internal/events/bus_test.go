/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	first := bus.Subscribe(EventNowPlaying)
	second := bus.Subscribe(EventNowPlaying)
	other := bus.Subscribe(EventStationStatus)

	bus.Publish(EventNowPlaying, Payload{"station": "test-fm"})

	for _, sub := range []Subscriber{first, second} {
		select {
		case payload := <-sub:
			if payload["station"] != "test-fm" {
				t.Errorf("payload = %v", payload)
			}
		default:
			t.Error("subscriber missed the event")
		}
	}
	select {
	case <-other:
		t.Error("subscriber of another type received the event")
	default:
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe(EventNowPlaying)

	// Overflow the buffered channel; Publish must return regardless.
	for i := 0; i < 50; i++ {
		bus.Publish(EventNowPlaying, Payload{"n": i})
	}

	if len(slow) != cap(slow) {
		t.Errorf("buffered %d events, want full capacity %d", len(slow), cap(slow))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJanitorSweep)
	bus.Unsubscribe(EventJanitorSweep, sub)

	if _, open := <-sub; open {
		t.Error("unsubscribed channel still open")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventJanitorSweep, Payload{"reclaimed": 1})
}
