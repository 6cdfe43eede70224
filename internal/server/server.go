/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the broadcast engine together and owns the HTTP
// listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/openairworks/aether_radio/internal/ai"
	"github.com/openairworks/aether_radio/internal/api"
	"github.com/openairworks/aether_radio/internal/cache"
	"github.com/openairworks/aether_radio/internal/config"
	"github.com/openairworks/aether_radio/internal/db"
	"github.com/openairworks/aether_radio/internal/encoder"
	"github.com/openairworks/aether_radio/internal/eventbus"
	"github.com/openairworks/aether_radio/internal/events"
	"github.com/openairworks/aether_radio/internal/janitor"
	"github.com/openairworks/aether_radio/internal/logbuffer"
	"github.com/openairworks/aether_radio/internal/producer"
	"github.com/openairworks/aether_radio/internal/radio"
	"github.com/openairworks/aether_radio/internal/scheduler"
	"github.com/openairworks/aether_radio/internal/storage"
	"github.com/openairworks/aether_radio/internal/store"
	"github.com/openairworks/aether_radio/internal/telemetry"
)

// Server bundles the HTTP surface and the supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	logBuffer  *logbuffer.Buffer
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db         *gorm.DB
	bus        *events.Bus
	cache      *cache.Cache
	natsBridge *eventbus.NATSBridge
	store      *store.Store
	supervisor *radio.Supervisor
	janitor    *janitor.Janitor

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(ctx context.Context, cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		logBuffer: logBuf,
		router:    router,
		bus:       events.NewBus(),
	}

	if err := srv.initDependencies(ctx); err != nil {
		return nil, err
	}
	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(router, "aether-radio"),
		ReadHeaderTimeout: 15 * time.Second,
		// Listeners poll the playlist and segments; a global write deadline
		// would cut off slow clients mid-segment.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies(ctx context.Context) error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := os.MkdirAll(s.cfg.ScratchRoot, 0o755); err != nil {
		return fmt.Errorf("create scratch root %s: %w", s.cfg.ScratchRoot, err)
	}

	s.store = store.New(database, s.logger)
	if s.cfg.BootstrapFile != "" {
		if err := s.store.Bootstrap(ctx, s.cfg.BootstrapFile); err != nil {
			return fmt.Errorf("bootstrap catalogue: %w", err)
		}
	}

	s.cache = cache.New(cache.Config{
		RedisAddr:      s.cfg.RedisAddr,
		RedisPassword:  s.cfg.RedisPassword,
		RedisDB:        s.cfg.RedisDB,
		DisableOnError: true,
	}, s.logger)
	if s.cache != nil {
		s.DeferClose(s.cache.Close)
	}

	bridge, err := eventbus.NewNATSBridge(s.cfg.NATSURL, s.bus, s.logger)
	if err != nil {
		// The engine runs fine without the external bridge.
		s.logger.Warn().Err(err).Msg("nats bridge unavailable, continuing without it")
	} else if bridge != nil {
		s.natsBridge = bridge
		s.DeferClose(func() error { bridge.Close(); return nil })
	}

	var objects storage.Storage
	switch s.cfg.StorageBackend {
	case "s3":
		objects, err = storage.NewS3(ctx, storage.S3Config{
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretKey,
			Region:          s.cfg.S3Region,
			Bucket:          s.cfg.S3Bucket,
			Endpoint:        s.cfg.S3Endpoint,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("init s3 storage: %w", err)
		}
	default:
		objects = storage.NewFilesystem(s.cfg.MediaRoot, s.logger)
	}

	enc := encoder.NewFFmpeg(s.cfg.FFmpegBin, s.logger)
	prod := producer.New(enc, objects, s.cfg.ScratchRoot, s.cfg.SegmentSeconds, s.logger)
	speech := ai.NewClient(s.cfg.AIBaseURL, s.cfg.AIToken, s.cfg.AITimeout, s.logger)
	sched := scheduler.New(s.store, speech, s.cfg.SceneWindow, s.logger)

	s.supervisor = radio.NewSupervisor(s.store, sched, prod, s.bus, s.cache, radio.Options{
		MinSegments:     s.cfg.MinSegments,
		MaxSegments:     s.cfg.MaxSegments,
		TickInterval:    s.cfg.TickInterval,
		OnlineWellGrace: s.cfg.OnlineWellGrace,
		RegressAfter:    s.cfg.RegressAfter,
		OfflineAfter:    s.cfg.OfflineAfter,
		EncodeWorkers:   s.cfg.EncodeWorkers,
		EphemeralTTL:    s.cfg.EphemeralTTL,
	}, s.logger)

	s.janitor = janitor.New(s.cfg.ScratchRoot, s.cfg.RetentionDays, s.cfg.JanitorInterval, s.bus, s.logger)

	return nil
}

func (s *Server) configureRoutes() {
	s.router.Handle("/metrics", telemetry.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	api.New(s.supervisor, s.logBuffer, s.cfg.APIToken, s.logger).Routes(s.router)
}

// Start launches the background workers and the HTTP listener. It blocks
// until the listener stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.natsBridge != nil {
		s.natsBridge.Start(
			events.EventNowPlaying,
			events.EventStationStatus,
			events.EventStationActivated,
			events.EventStationDeactivated,
			events.EventBufferReset,
			events.EventJanitorSweep,
		)
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("janitor loop exited")
		}
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, the station loops, and the background
// workers, then releases owned resources in reverse order.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}

	s.supervisor.Shutdown()

	if s.bgCancel != nil {
		s.bgCancel()
		s.bgWG.Wait()
		s.bgCancel = nil
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Supervisor exposes the station pool, mainly for the CLI.
func (s *Server) Supervisor() *radio.Supervisor {
	return s.supervisor
}
