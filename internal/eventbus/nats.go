/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges in-process events to external consumers.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/openairworks/aether_radio/internal/events"
	"github.com/rs/zerolog"
)

const subjectPrefix = "aether.events."

// NATSBridge mirrors selected in-process events onto NATS subjects so
// dashboards and AI tooling outside the process can follow the pool.
type NATSBridge struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	cancel context.CancelFunc
}

// NewNATSBridge connects to NATS. Returns nil when no URL is configured; the
// engine runs fine without an external event feed.
func NewNATSBridge(url string, bus *events.Bus, logger zerolog.Logger) (*NATSBridge, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &NATSBridge{conn: conn, bus: bus, logger: logger}, nil
}

// Start mirrors the given event types until Close.
func (b *NATSBridge) Start(types ...events.EventType) {
	if b == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	for _, eventType := range types {
		sub := b.bus.Subscribe(eventType)
		go b.forward(ctx, eventType, sub)
	}
	b.logger.Info().Int("types", len(types)).Msg("NATS event bridge started")
}

func (b *NATSBridge) forward(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	subject := subjectPrefix + string(eventType)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(payload)
			if err != nil {
				b.logger.Debug().Err(err).Str("subject", subject).Msg("event marshal failed")
				continue
			}
			if err := b.conn.Publish(subject, data); err != nil {
				b.logger.Debug().Err(err).Str("subject", subject).Msg("event publish failed")
			}
		}
	}
}

// Close stops forwarding and drains the connection.
func (b *NATSBridge) Close() {
	if b == nil {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Debug().Err(err).Msg("NATS drain failed")
	}
}
