/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openairworks/aether_radio/internal/config"
	"github.com/openairworks/aether_radio/internal/logbuffer"
	"github.com/openairworks/aether_radio/internal/logging"
	"github.com/openairworks/aether_radio/internal/server"
	"github.com/openairworks/aether_radio/internal/telemetry"
	"github.com/openairworks/aether_radio/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer

	autoActivate []string
)

var rootCmd = &cobra.Command{
	Use:     "aetherradio",
	Short:   "Aether Radio - Continuous internet radio broadcast engine",
	Long:    "Aether Radio keeps a pool of stations on air: it schedules catalogue rotation, AI-voiced scenes, and manual queues into a sliding window of encoded audio segments served over HTTP.",
	Version: version.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Aether Radio server",
	Long:  "Start the HTTP API server and the station pool",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&autoActivate, "activate", nil, "Station slugs to bring on air at startup (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(1000)
	logger = logging.SetupWithWriter(cfg.Environment, logBuf)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Aether Radio starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "aether-radio",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cmd.Context(), cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	for _, slug := range autoActivate {
		if _, err := srv.Supervisor().Activate(context.Background(), slug); err != nil {
			logger.Error().Err(err).Str("station", slug).Msg("startup activation failed")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("Aether Radio stopped")
	return nil
}
