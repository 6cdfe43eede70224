/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the operational controls and the listener-facing read
// surface over HTTP. It is a thin shell: all decisions live in the radio
// package.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/openairworks/aether_radio/internal/auth"
	"github.com/openairworks/aether_radio/internal/content"
	"github.com/openairworks/aether_radio/internal/logbuffer"
	"github.com/openairworks/aether_radio/internal/radio"
	"github.com/openairworks/aether_radio/internal/store"
	"github.com/rs/zerolog"
)

// Handler serves the control and stream endpoints.
type Handler struct {
	supervisor *radio.Supervisor
	logs       *logbuffer.Buffer
	apiToken   string
	logger     zerolog.Logger
}

// New creates the HTTP handler set.
func New(supervisor *radio.Supervisor, logs *logbuffer.Buffer, apiToken string, logger zerolog.Logger) *Handler {
	return &Handler{supervisor: supervisor, logs: logs, apiToken: apiToken, logger: logger}
}

// Routes registers the handlers on the given router. The ops API sits behind
// the bearer token; the listener-facing stream endpoints stay open.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.TokenMiddleware(h.apiToken))
		r.Get("/stations", h.listStations)
		r.Get("/stations/{slug}", h.getStation)
		r.Post("/stations/{slug}/activate", h.activate)
		r.Post("/stations/{slug}/deactivate", h.deactivate)
		r.Post("/stations/{slug}/queue", h.enqueue)
		r.Post("/streams", h.createEphemeral)
		r.Get("/logs", h.recentLogs)
	})

	r.Route("/streams/{slug}", func(r chi.Router) {
		r.Get("/playlist.m3u8", h.playlist)
		r.Get("/segments/{seq}.mp3", h.segment)
	})
}

func (h *Handler) listStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.Snapshot())
}

func (h *Handler) getStation(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	st, ok := h.supervisor.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "station not active")
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	st, err := h.supervisor.Activate(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("station", slug).Msg("activation failed")
		writeError(w, http.StatusInternalServerError, "activation failed")
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	previous, wasActive := h.supervisor.Deactivate(slug)
	writeJSON(w, http.StatusOK, map[string]any{
		"station":         slug,
		"was_active":      wasActive,
		"previous_status": previous,
	})
}

type enqueueRequest struct {
	FragmentID string `json:"fragment_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Path       string `json:"path"`
	StorageKey string `json:"storage_key"`
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A catalogue fragment is referenced by ID; ad-hoc audio by path or
	// storage key.
	if req.FragmentID != "" {
		item, err := h.supervisor.EnqueueFragmentByID(r.Context(), slug, req.FragmentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, radio.ErrNotActive) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"station": slug, "queued": item.Display()})
		return
	}

	if req.Path == "" && req.StorageKey == "" {
		writeError(w, http.StatusBadRequest, "fragment_id, path, or storage_key required")
		return
	}

	item := content.Item{
		Kind:       content.KindFragment,
		Title:      req.Title,
		Artist:     req.Artist,
		AudioPath:  req.Path,
		StorageKey: req.StorageKey,
	}
	if err := h.supervisor.EnqueueManual(slug, item); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"station": slug, "queued": item.Display()})
}

type ephemeralRequest struct {
	Source  string   `json:"source"`
	Scripts []string `json:"scripts"`
}

func (h *Handler) createEphemeral(w http.ResponseWriter, r *http.Request) {
	var req ephemeralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source station required")
		return
	}

	st, err := h.supervisor.ActivateEphemeral(r.Context(), req.Source, req.Scripts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("source", req.Source).Msg("ephemeral stream failed")
		writeError(w, http.StatusInternalServerError, "ephemeral stream failed")
		return
	}
	writeJSON(w, http.StatusCreated, st.View())
}

func (h *Handler) recentLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeJSON(w, http.StatusOK, []logbuffer.Entry{})
		return
	}
	n := 200
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.logs.Recent(n))
}

// playlist renders the HLS media playlist from the current window. Sequence
// numbers are the only state a client needs to resume.
func (h *Handler) playlist(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	st, ok := h.supervisor.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "station not active")
		return
	}

	window := st.Buffer().Window()
	if len(window) == 0 {
		writeError(w, http.StatusServiceUnavailable, "station warming up")
		return
	}

	target := 0
	for _, seg := range window {
		if secs := int(math.Ceil(seg.Duration.Seconds())); secs > target {
			target = secs
		}
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&sb, "#EXT-X-TARGETDURATION:%d\n", target)
	fmt.Fprintf(&sb, "#EXT-X-MEDIA-SEQUENCE:%d\n", window[0].Sequence)
	for _, seg := range window {
		fmt.Fprintf(&sb, "#EXTINF:%.3f,%s\n", seg.Duration.Seconds(), seg.Metadata)
		fmt.Fprintf(&sb, "segments/%d.mp3\n", seg.Sequence)
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(sb.String()))
}

func (h *Handler) segment(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	st, ok := h.supervisor.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "station not active")
		return
	}

	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sequence number")
		return
	}

	seg, ok := st.Buffer().Get(seq)
	if !ok {
		writeError(w, http.StatusNotFound, "segment no longer in window")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "max-age=86400")
	_, _ = w.Write(seg.Data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
