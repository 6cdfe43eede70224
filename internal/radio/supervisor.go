/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package radio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openairworks/aether_radio/internal/cache"
	"github.com/openairworks/aether_radio/internal/content"
	"github.com/openairworks/aether_radio/internal/events"
	"github.com/openairworks/aether_radio/internal/models"
	"github.com/openairworks/aether_radio/internal/scheduler"
	"github.com/openairworks/aether_radio/internal/segment"
	"github.com/openairworks/aether_radio/internal/store"
	"github.com/openairworks/aether_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrNotActive reports an operation against a station that is not in the pool.
var ErrNotActive = errors.New("station not active")

// Producer is the segment production stage the supervisor drives each tick.
type Producer interface {
	Produce(ctx context.Context, stationSlug string, bitrateKbps int, item content.Item) ([]*segment.Segment, error)
}

// Options tune the lifecycle state machine. Thresholds are defaults, not
// contracts; operators override them per deployment.
type Options struct {
	MinSegments     int
	MaxSegments     int
	TickInterval    time.Duration
	OnlineWellGrace time.Duration
	RegressAfter    int // Consecutive failures before regression to WARMING_UP
	OfflineAfter    int // Consecutive failures before OFFLINE and removal
	EncodeWorkers   int
	EphemeralTTL    time.Duration
}

func (o *Options) applyDefaults() {
	if o.MinSegments <= 0 {
		o.MinSegments = 3
	}
	if o.MaxSegments < o.MinSegments {
		o.MaxSegments = o.MinSegments * 4
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 10 * time.Second
	}
	if o.OnlineWellGrace <= 0 {
		o.OnlineWellGrace = 2 * time.Minute
	}
	if o.RegressAfter <= 0 {
		o.RegressAfter = 3
	}
	if o.OfflineAfter <= o.RegressAfter {
		o.OfflineAfter = o.RegressAfter + 7
	}
	if o.EncodeWorkers <= 0 {
		o.EncodeWorkers = 1
	}
	if o.EphemeralTTL <= 0 {
		o.EphemeralTTL = time.Hour
	}
}

// Supervisor owns the map of active stations and drives each station's
// lifecycle. It is the only component that mutates station status.
type Supervisor struct {
	store  *store.Store
	sched  *scheduler.Scheduler
	prod   Producer
	bus    *events.Bus
	cache  *cache.Cache // Optional
	logger zerolog.Logger
	opts   Options

	// Bounded pool for external encoder invocations, shared across all
	// stations so one slow encode cannot oversubscribe the host.
	encodeSlots chan struct{}

	mu       sync.Mutex
	stations map[string]*Station
}

// NewSupervisor creates the station pool.
func NewSupervisor(st *store.Store, sched *scheduler.Scheduler, prod Producer, bus *events.Bus, c *cache.Cache, opts Options, logger zerolog.Logger) *Supervisor {
	opts.applyDefaults()
	return &Supervisor{
		store:       st,
		sched:       sched,
		prod:        prod,
		bus:         bus,
		cache:       c,
		logger:      logger,
		opts:        opts,
		encodeSlots: make(chan struct{}, opts.EncodeWorkers),
		stations:    make(map[string]*Station),
	}
}

// Activate brings a station online. Idempotent: a second call (including a
// concurrent one) returns the existing instance without starting a second
// tick or buffer.
func (s *Supervisor) Activate(ctx context.Context, slug string) (*Station, error) {
	s.mu.Lock()
	if existing, ok := s.stations[slug]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	model, err := s.store.StationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	return s.admit(model, false, nil)
}

// ActivateEphemeral builds a one-time stream from a source station plus a
// script selection. The clone keeps the source's catalogue identity but gets
// its own slug, buffer, and TTL; it is never persisted.
func (s *Supervisor) ActivateEphemeral(ctx context.Context, sourceSlug string, scriptIDs []string) (*Station, error) {
	source, err := s.store.StationBySlug(ctx, sourceSlug)
	if err != nil {
		return nil, err
	}

	clone := *source
	clone.Slug = fmt.Sprintf("%s-%s", source.Slug, uuid.NewString()[:8])
	clone.ManagedBy = models.ManagedItself
	if scriptIDs == nil {
		scriptIDs = []string{}
	}

	return s.admit(&clone, true, scriptIDs)
}

// admit inserts the station into the pool and starts its run loop. The
// re-check after insertion keeps concurrent activations idempotent.
func (s *Supervisor) admit(model *models.Station, ephemeral bool, scriptFilter []string) (*Station, error) {
	ctx, cancel := context.WithCancel(context.Background())
	st := &Station{
		model:        model,
		buffer:       segment.NewBuffer(s.opts.MinSegments, s.opts.MaxSegments),
		ephemeral:    ephemeral,
		scriptFilter: scriptFilter,
		status:       StatusWarmingUp,
		startedAt:    time.Now().UTC(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	if ephemeral {
		st.expiresAt = st.startedAt.Add(s.opts.EphemeralTTL)
	}

	s.mu.Lock()
	if existing, ok := s.stations[model.Slug]; ok {
		s.mu.Unlock()
		cancel()
		return existing, nil
	}
	s.stations[model.Slug] = st
	s.mu.Unlock()

	telemetry.StationsActive.Inc()
	telemetry.StationStatus.WithLabelValues(model.Slug).Set(statusCode(StatusWarmingUp))
	s.bus.Publish(events.EventStationActivated, events.Payload{
		"station":   model.Slug,
		"ephemeral": ephemeral,
	})
	s.logger.Info().Str("station", model.Slug).Bool("ephemeral", ephemeral).Msg("station activated")

	go s.run(ctx, st)
	return st, nil
}

// Deactivate stops the tick, discards the buffer, and removes the station
// from the pool. Returns the station's previous status; not an error when
// the station was not active.
func (s *Supervisor) Deactivate(slug string) (Status, bool) {
	s.mu.Lock()
	st, ok := s.stations[slug]
	if ok {
		delete(s.stations, slug)
	}
	s.mu.Unlock()

	if !ok {
		return StatusOffline, false
	}

	previous := st.Status()
	st.cancel()
	<-st.done

	st.mu.Lock()
	st.status = StatusOffline
	st.mu.Unlock()

	s.sched.DropQueue(slug)

	telemetry.StationsActive.Dec()
	telemetry.StationStatus.DeleteLabelValues(slug)
	telemetry.BufferDepth.DeleteLabelValues(slug)
	s.bus.Publish(events.EventStationDeactivated, events.Payload{
		"station":         slug,
		"previous_status": string(previous),
	})
	s.logger.Info().Str("station", slug).Str("previous_status", string(previous)).Msg("station deactivated")
	s.publishSnapshot()
	return previous, true
}

// Get returns the active station for the slug.
func (s *Supervisor) Get(slug string) (*Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[slug]
	return st, ok
}

// Snapshot returns a consistent-enough view of all active stations. The pool
// lock is held only to copy references; per-station state is read under each
// station's own lock.
func (s *Supervisor) Snapshot() []StationView {
	s.mu.Lock()
	stations := make([]*Station, 0, len(s.stations))
	for _, st := range s.stations {
		stations = append(stations, st)
	}
	s.mu.Unlock()

	views := make([]StationView, 0, len(stations))
	for _, st := range stations {
		views = append(views, st.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Slug < views[j].Slug })
	return views
}

// EnqueueManual inserts an ad-hoc item into an active station's manual queue.
func (s *Supervisor) EnqueueManual(slug string, item content.Item) error {
	if _, ok := s.Get(slug); !ok {
		return fmt.Errorf("station %q: %w", slug, ErrNotActive)
	}
	s.sched.Push(slug, item)
	return nil
}

// EnqueueFragmentByID resolves a catalogue fragment and queues it on an
// active station.
func (s *Supervisor) EnqueueFragmentByID(ctx context.Context, slug, fragmentID string) (content.Item, error) {
	frag, err := s.store.FragmentByID(ctx, fragmentID)
	if err != nil {
		return content.Item{}, err
	}
	item := content.Item{
		Kind:       content.KindFragment,
		FragmentID: frag.ID,
		Title:      frag.Title,
		Artist:     frag.Artist,
		AudioPath:  frag.Path,
		StorageKey: frag.StorageKey,
	}
	if err := s.EnqueueManual(slug, item); err != nil {
		return content.Item{}, err
	}
	return item, nil
}

// Shutdown deactivates every station.
func (s *Supervisor) Shutdown() {
	for _, view := range s.Snapshot() {
		s.Deactivate(view.Slug)
	}
}

// run is the per-station loop: one tick per interval, serial within the
// station so appends happen in submission order, independent across stations.
func (s *Supervisor) run(ctx context.Context, st *Station) {
	defer close(st.done)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	// Immediate first tick so warm-up starts without waiting an interval.
	s.tick(ctx, st)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if st.ephemeral && time.Now().UTC().After(st.expiresAt) {
				s.logger.Info().Str("station", st.Slug()).Msg("ephemeral stream expired")
				go s.Deactivate(st.Slug())
				return
			}
			s.tick(ctx, st)
		}
	}
}

// tick runs one production cycle: select, encode, append, update lifecycle.
func (s *Supervisor) tick(ctx context.Context, st *Station) {
	slug := st.Slug()
	telemetry.TicksTotal.WithLabelValues(slug).Inc()

	ctx, span := telemetry.StartSpan(ctx, "radio", "tick")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"station": slug})

	item, err := s.sched.Next(ctx, st.model, st.scriptFilter)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailure(st, "schedule", err)
		return
	}

	// Encoding is slow and external: throttle through the shared bounded
	// pool without holding any buffer lock.
	select {
	case s.encodeSlots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	segments, err := s.prod.Produce(ctx, slug, st.model.BitrateKbps, item)
	<-s.encodeSlots

	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailure(st, "encode", err)
		return
	}
	if ctx.Err() != nil {
		// Deactivated while encoding: discard, never append to a buffer
		// that is leaving the pool.
		return
	}

	if err := st.buffer.Append(segments); err != nil {
		// Sequence gap is fatal for this station only: reset and re-warm.
		telemetry.RecordError(span, err)
		s.logger.Error().Err(err).Str("station", slug).Msg("buffer invariant violated, resetting")
		st.buffer.Reset()
		s.setStatus(st, StatusWarmingUp)
		s.bus.Publish(events.EventBufferReset, events.Payload{"station": slug})
		return
	}

	telemetry.SegmentsProducedTotal.WithLabelValues(slug).Add(float64(len(segments)))
	telemetry.BufferDepth.WithLabelValues(slug).Set(float64(st.buffer.Len()))

	st.mu.Lock()
	st.failCount = 0
	st.nowPlaying = item.Display()
	st.mu.Unlock()

	s.bus.Publish(events.EventSegmentsAppended, events.Payload{
		"station":  slug,
		"count":    len(segments),
		"next_seq": st.buffer.NextSequence(),
	})
	s.bus.Publish(events.EventNowPlaying, events.Payload{
		"station": slug,
		"title":   item.Title,
		"artist":  item.Artist,
		"kind":    string(item.Kind),
	})
	s.publishNowPlaying(slug, item.Display())

	s.promote(st, item)
	s.publishSnapshot()
}

// promote advances the lifecycle after a healthy append. Filler keeps a
// station in warm-up: only real content takes it ONLINE.
func (s *Supervisor) promote(st *Station, item content.Item) {
	if !st.buffer.WarmedUp() || item.Kind == content.KindFiller {
		return
	}

	now := time.Now().UTC()
	st.mu.Lock()
	switch st.status {
	case StatusWarmingUp:
		st.status = StatusOnline
		st.healthySince = now
		st.mu.Unlock()
		s.logStatus(st, StatusOnline)
		return
	case StatusOnline:
		if st.healthySince.IsZero() {
			st.healthySince = now
		}
		if now.Sub(st.healthySince) >= s.opts.OnlineWellGrace {
			st.status = StatusOnlineWell
			st.mu.Unlock()
			s.logStatus(st, StatusOnlineWell)
			return
		}
	}
	st.mu.Unlock()
}

// recordFailure counts a failed tick. The buffer keeps its pre-failure
// contents; listeners are served the last healthy window until recovery.
func (s *Supervisor) recordFailure(st *Station, reason string, err error) {
	slug := st.Slug()
	telemetry.TickErrorsTotal.WithLabelValues(slug, reason).Inc()
	s.logger.Warn().Err(err).Str("station", slug).Str("reason", reason).Msg("tick failed")

	st.mu.Lock()
	st.failCount++
	failures := st.failCount
	status := st.status
	st.mu.Unlock()

	if failures >= s.opts.OfflineAfter {
		s.logger.Error().Str("station", slug).Int("failures", failures).Msg("unrecoverable failure count, taking station offline")
		go s.Deactivate(slug)
		return
	}
	if failures >= s.opts.RegressAfter && (status == StatusOnline || status == StatusOnlineWell) {
		s.setStatus(st, StatusWarmingUp)
	}
}

func (s *Supervisor) setStatus(st *Station, status Status) {
	st.mu.Lock()
	if st.status == status {
		st.mu.Unlock()
		return
	}
	st.status = status
	st.healthySince = time.Time{}
	st.mu.Unlock()
	s.logStatus(st, status)
}

func (s *Supervisor) logStatus(st *Station, status Status) {
	slug := st.Slug()
	telemetry.StationStatus.WithLabelValues(slug).Set(statusCode(status))
	s.bus.Publish(events.EventStationStatus, events.Payload{
		"station": slug,
		"status":  string(status),
	})
	s.logger.Info().Str("station", slug).Str("status", string(status)).Msg("station status changed")
}

// publishSnapshot pushes the pool view into the cache for dashboards.
func (s *Supervisor) publishSnapshot() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.SetSnapshot(ctx, s.Snapshot()); err != nil {
		s.logger.Debug().Err(err).Msg("snapshot cache update failed")
	}
}

// publishNowPlaying mirrors the station's current metadata into the cache.
func (s *Supervisor) publishNowPlaying(slug, metadata string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.SetNowPlaying(ctx, slug, metadata); err != nil {
		s.logger.Debug().Err(err).Str("station", slug).Msg("now playing cache update failed")
	}
}
