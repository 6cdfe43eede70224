/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-backed view cache with graceful fallback:
// a broken Redis degrades dashboards, never the broadcast engine.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	KeySnapshot   = "aether:cache:snapshot"
	KeyNowPlaying = "aether:cache:now_playing:" // + station slug

	DefaultSnapshotTTL = 30 * time.Second
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration
	// DisableOnError stops talking to Redis after a failure instead of
	// retrying on every write.
	DisableOnError bool
}

// Cache wraps the Redis client.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	ttl    time.Duration

	mu             sync.Mutex
	disabled       bool
	disableOnError bool
}

// New creates a cache. Returns nil when no Redis address is configured so
// callers can treat the cache as strictly optional.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = DefaultSnapshotTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Cache{
		client:         client,
		logger:         logger,
		ttl:            cfg.SnapshotTTL,
		disableOnError: cfg.DisableOnError,
	}
}

// SetSnapshot stores the station pool view.
func (c *Cache) SetSnapshot(ctx context.Context, snapshot any) error {
	if c == nil || c.isDisabled() {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, KeySnapshot, data, c.ttl).Err(); err != nil {
		c.handleError(err)
		return err
	}
	return nil
}

// Snapshot retrieves the raw station pool view.
func (c *Cache) Snapshot(ctx context.Context) ([]byte, bool) {
	if c == nil || c.isDisabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, KeySnapshot).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.handleError(err)
		}
		return nil, false
	}
	return data, true
}

// SetNowPlaying stores the current metadata for one station.
func (c *Cache) SetNowPlaying(ctx context.Context, slug, metadata string) error {
	if c == nil || c.isDisabled() {
		return nil
	}
	if err := c.client.Set(ctx, KeyNowPlaying+slug, metadata, c.ttl).Err(); err != nil {
		c.handleError(err)
		return err
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) isDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

func (c *Cache) handleError(err error) {
	c.logger.Debug().Err(err).Msg("cache operation failed")
	if !c.disableOnError {
		return
	}
	c.mu.Lock()
	if !c.disabled {
		c.disabled = true
		c.logger.Warn().Msg("cache disabled after Redis error")
	}
	c.mu.Unlock()
}
