/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Station pool
	StationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aether_stations_active",
		Help: "Number of stations currently in the pool.",
	})
	StationStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aether_station_status",
		Help: "Current lifecycle status per station (value is a status code).",
	}, []string{"station"})

	// Production ticks
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_ticks_total",
		Help: "Production ticks executed per station.",
	}, []string{"station"})
	TickErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_tick_errors_total",
		Help: "Failed production ticks per station and reason.",
	}, []string{"station", "reason"})

	// Segments
	SegmentsProducedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_segments_produced_total",
		Help: "Segments appended to station buffers.",
	}, []string{"station"})
	BufferDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aether_buffer_depth",
		Help: "Current sliding window length per station.",
	}, []string{"station"})

	// External encoder
	EncodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aether_encode_duration_seconds",
		Help:    "Wall time of external encoder invocations.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"stage"})
	EncodeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_encode_failures_total",
		Help: "External encoder failures per stage.",
	}, []string{"stage"})

	// AI speech collaborator
	SpeechRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_speech_requests_total",
		Help: "AI speech generation attempts by outcome.",
	}, []string{"outcome"})

	// Janitor
	JanitorReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aether_janitor_reclaimed_total",
		Help: "Scratch files and directories removed by the janitor.",
	})

	// Database
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aether_db_query_duration_seconds",
		Help:    "Duration of database operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_db_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation"})

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aether_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
	HTTPActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aether_http_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
