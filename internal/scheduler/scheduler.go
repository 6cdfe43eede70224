/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler decides what a station plays next: manual queue entries
// first, then open scenes realized as AI speech, then fragment rotation.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/openairworks/aether_radio/internal/ai"
	"github.com/openairworks/aether_radio/internal/content"
	"github.com/openairworks/aether_radio/internal/models"
	"github.com/openairworks/aether_radio/internal/store"
	"github.com/rs/zerolog"
)

// Scheduler selects the next content item per station tick.
type Scheduler struct {
	store       *store.Store
	speech      *ai.Client
	sceneWindow time.Duration
	logger      zerolog.Logger

	mu      sync.Mutex
	queues  map[string][]content.Item // Manual queue per station slug, FIFO
	fired   map[string]struct{}       // Recurring scenes fired this window, sceneID+day
	pending map[string]playMark       // Picks not yet persisted, stationID+fragmentID
	rng     *rand.Rand

	now func() time.Time // Test hook
}

// playMark is rotation bookkeeping for picks whose play-count write has not
// landed yet, so consecutive picks see each other.
type playMark struct {
	count      int
	lastPlayed time.Time
}

// New creates a scheduler.
func New(st *store.Store, speech *ai.Client, sceneWindow time.Duration, logger zerolog.Logger) *Scheduler {
	if sceneWindow <= 0 {
		sceneWindow = 5 * time.Minute
	}
	return &Scheduler{
		store:       st,
		speech:      speech,
		sceneWindow: sceneWindow,
		logger:      logger,
		queues:      make(map[string][]content.Item),
		fired:       make(map[string]struct{}),
		pending:     make(map[string]playMark),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Push inserts an ad-hoc item at the tail of the station's manual queue.
// Manual entries beat scenes and rotation, FIFO among themselves.
func (s *Scheduler) Push(stationSlug string, item content.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[stationSlug] = append(s.queues[stationSlug], item)
}

// DropQueue discards the manual queue for a station, called on deactivation.
func (s *Scheduler) DropQueue(stationSlug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, stationSlug)
}

// QueueLen returns the manual queue depth for a station.
func (s *Scheduler) QueueLen(stationSlug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[stationSlug])
}

// Next selects the content item for this tick. A non-nil scriptIDs restricts
// scene selection to those scripts (used by one-time ephemeral streams). It
// never fails on an empty catalogue: a station with nothing to play gets
// silence filler and stays in warm-up. Errors are returned only for catalogue
// read failures.
func (s *Scheduler) Next(ctx context.Context, station *models.Station, scriptIDs []string) (content.Item, error) {
	if item, ok := s.popQueue(station.Slug); ok {
		return item, nil
	}

	if station.ManagedBy != models.ManagedSelf {
		if item, ok := s.nextScene(ctx, station, scriptIDs); ok {
			return item, nil
		}
	}

	return s.nextFragment(ctx, station)
}

func (s *Scheduler) popQueue(slug string) (content.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[slug]
	if len(queue) == 0 {
		return content.Item{}, false
	}
	item := queue[0]
	s.queues[slug] = queue[1:]
	return item, true
}

// nextScene realizes the first open scene into speech. Any failure, including
// a generation timeout, falls back to rotation for this tick; the scene stays
// eligible for its next window.
func (s *Scheduler) nextScene(ctx context.Context, station *models.Station, scriptIDs []string) (content.Item, bool) {
	var scenes []models.Scene
	var err error
	if scriptIDs != nil {
		scenes, err = s.store.ScenesForScripts(ctx, scriptIDs)
	} else {
		scenes, err = s.store.ActiveScenes(ctx, station.ID)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("station", station.Slug).Msg("scene lookup failed")
		return content.Item{}, false
	}

	now := s.now().In(station.Location())
	for _, scene := range scenes {
		if !s.sceneOpen(scene, now) {
			continue
		}
		if !s.drawTalkativity(scene.Talkativity) {
			s.markFired(scene, now)
			continue
		}

		item, ok := s.realizeScene(ctx, station, scene)
		if !ok {
			continue
		}
		s.markFired(scene, now)
		if scene.OneTimeRun {
			if err := s.store.MarkSceneFired(ctx, scene.ID, s.now().UTC()); err != nil {
				s.logger.Warn().Err(err).Str("scene", scene.ID).Msg("failed to persist one-time scene fire")
			}
		}
		return item, true
	}
	return content.Item{}, false
}

// sceneOpen reports whether the scene's window currently applies and it has
// not already fired for this window.
func (s *Scheduler) sceneOpen(scene models.Scene, now time.Time) bool {
	if scene.OneTimeRun && scene.FiredAt != nil {
		return false
	}
	if !scene.WeekdayActive(now.Weekday()) {
		return false
	}

	start, err := parseWallClock(scene.StartTime, now)
	if err != nil {
		s.logger.Debug().Str("scene", scene.ID).Str("start", scene.StartTime).Msg("unparseable scene start time")
		return false
	}
	if now.Before(start) || !now.Before(start.Add(s.sceneWindow)) {
		return false
	}

	s.mu.Lock()
	_, alreadyFired := s.fired[firedKey(scene.ID, now)]
	s.mu.Unlock()
	return !alreadyFired
}

func (s *Scheduler) markFired(scene models.Scene, now time.Time) {
	s.mu.Lock()
	s.fired[firedKey(scene.ID, now)] = struct{}{}
	// Drop stale entries so the map does not grow with the calendar.
	if len(s.fired) > 4096 {
		s.fired = map[string]struct{}{firedKey(scene.ID, now): {}}
	}
	s.mu.Unlock()
}

func firedKey(sceneID string, now time.Time) string {
	return sceneID + ":" + now.Format("2006-01-02")
}

// drawTalkativity performs the weighted random draw: weight 0 never speaks,
// weight 1 always attempts.
func (s *Scheduler) drawTalkativity(weight float64) bool {
	if weight <= 0 {
		return false
	}
	if weight >= 1 {
		return true
	}
	s.mu.Lock()
	draw := s.rng.Float64()
	s.mu.Unlock()
	return draw < weight
}

func (s *Scheduler) realizeScene(ctx context.Context, station *models.Station, scene models.Scene) (content.Item, bool) {
	prompts := make([]string, 0, len(scene.Prompts))
	for _, prompt := range scene.Prompts {
		prompts = append(prompts, prompt.Text)
	}
	if len(prompts) == 0 {
		return content.Item{}, false
	}

	result, err := s.speech.GenerateSpeech(ctx, ai.SpeechRequest{
		StationSlug: station.Slug,
		AgentID:     station.AgentID,
		Prompts:     prompts,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("station", station.Slug).
			Str("scene", scene.Name).
			Msg("speech generation failed, falling back to rotation")
		return content.Item{}, false
	}

	item := content.Item{
		Kind:        content.KindSpeech,
		Title:       scene.Name,
		Artist:      station.Name,
		SpeechAudio: result.Audio,
		Transcript:  result.Transcript,
		GapSeconds:  1,
	}

	// Mix the speech over a bed track picked by the same rotation policy;
	// without songs the speech goes over silence.
	if bed, err := s.pickFragment(ctx, station); err == nil && bed != nil {
		item.FragmentID = bed.FragmentID
		item.AudioPath = bed.Fragment.Path
		item.StorageKey = bed.Fragment.StorageKey
	}
	return item, true
}

// nextFragment picks from rotation, or silence filler when nothing is
// assigned.
func (s *Scheduler) nextFragment(ctx context.Context, station *models.Station) (content.Item, error) {
	pick, err := s.pickFragment(ctx, station)
	if err != nil {
		return content.Item{}, err
	}
	if pick == nil {
		return content.Item{
			Kind:  content.KindFiller,
			Title: "silence",
		}, nil
	}

	return content.Item{
		Kind:       content.KindFragment,
		FragmentID: pick.FragmentID,
		Title:      pick.Fragment.Title,
		Artist:     pick.Fragment.Artist,
		AudioPath:  pick.Fragment.Path,
		StorageKey: pick.Fragment.StorageKey,
	}, nil
}

// pickFragment applies least-played-first, then oldest-last-played-first
// ordering and bumps the play count fire-and-forget. Picks whose write has
// not landed yet are overlaid from the pending map, so back-to-back picks
// rotate fairly instead of re-reading stale counts. Returns nil with no
// error when the station has no active assignments.
func (s *Scheduler) pickFragment(ctx context.Context, station *models.Station) (*models.StationFragment, error) {
	assigned, err := s.store.AssignedFragments(ctx, station.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	if len(assigned) == 0 {
		return nil, nil
	}

	type candidate struct {
		models.StationFragment
		plays      int64
		lastPlayed *time.Time
	}

	s.mu.Lock()
	ranked := make([]candidate, len(assigned))
	for i, a := range assigned {
		c := candidate{StationFragment: a, plays: a.PlayedCount, lastPlayed: a.LastPlayedAt}
		if mark, ok := s.pending[playKey(station.ID, a.FragmentID)]; ok {
			c.plays += int64(mark.count)
			last := mark.lastPlayed
			c.lastPlayed = &last
		}
		ranked[i] = c
	}
	s.mu.Unlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.plays != b.plays {
			return a.plays < b.plays
		}
		// Never-played fragments sort before any played fragment.
		if (a.lastPlayed == nil) != (b.lastPlayed == nil) {
			return a.lastPlayed == nil
		}
		if a.lastPlayed != nil && !a.lastPlayed.Equal(*b.lastPlayed) {
			return a.lastPlayed.Before(*b.lastPlayed)
		}
		return a.Rank < b.Rank
	})

	pick := ranked[0].StationFragment
	playedAt := s.now().UTC()
	key := playKey(station.ID, pick.FragmentID)

	s.mu.Lock()
	mark := s.pending[key]
	mark.count++
	mark.lastPlayed = playedAt
	s.pending[key] = mark
	s.mu.Unlock()

	// Best effort: a missed increment degrades fairness slightly but must
	// never block or fail the tick.
	go func(stationID, fragmentID string, at time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.store.IncrementPlayCount(ctx, stationID, fragmentID, at)
		if err != nil {
			s.logger.Debug().Err(err).
				Str("station", stationID).
				Str("fragment", fragmentID).
				Msg("play count increment failed")
			return
		}
		// The write landed, the stored row now carries this pick.
		s.mu.Lock()
		mark := s.pending[playKey(stationID, fragmentID)]
		mark.count--
		if mark.count <= 0 {
			delete(s.pending, playKey(stationID, fragmentID))
		} else {
			s.pending[playKey(stationID, fragmentID)] = mark
		}
		s.mu.Unlock()
	}(station.ID, pick.FragmentID, playedAt)

	return &pick, nil
}

func playKey(stationID, fragmentID string) string {
	return stationID + ":" + fragmentID
}

// parseWallClock resolves "HH:MM" against the reference day and zone.
func parseWallClock(value string, ref time.Time) (time.Time, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, ref.Location()), nil
}
