/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	APIToken    string // Bearer token for the ops API; empty disables the check
	DBBackend   DatabaseBackend
	DBDSN       string

	// Broadcast engine
	ScratchRoot     string        // Per-day/per-station scratch tree for merged audio and segment files
	FFmpegBin       string        // External media encoder binary
	SegmentSeconds  int           // Fixed segment duration
	MinSegments     int           // Window low watermark; station goes ONLINE at this depth
	MaxSegments     int           // Window high watermark; appends beyond evict from the head
	TickInterval    time.Duration // Per-station production cycle
	OnlineWellGrace time.Duration // Continuous healthy time before ONLINE -> ONLINE_WELL
	RegressAfter    int           // Consecutive tick failures before regression to WARMING_UP
	OfflineAfter    int           // Consecutive tick failures before the station is taken OFFLINE
	EncodeWorkers   int           // Bounded pool for external encoder invocations
	SceneWindow     time.Duration // How long a scene stays open past its start time
	EphemeralTTL    time.Duration // Lifetime of one-time streams before auto teardown

	// Janitor
	JanitorInterval time.Duration
	RetentionDays   int

	// AI speech collaborator
	AIBaseURL string
	AIToken   string
	AITimeout time.Duration

	// Catalogue bootstrap
	BootstrapFile string // Optional YAML seed applied to an empty store

	// Object storage
	StorageBackend  string // "fs" or "s3"
	MediaRoot       string
	S3AccessKeyID   string
	S3SecretKey     string
	S3Region        string
	S3Bucket        string
	S3Endpoint      string
	S3UsePathStyle  bool

	// Cache / event bridge
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string

	// Tracing
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("AETHER_ENV", "development"),
		HTTPBind:    getEnv("AETHER_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("AETHER_HTTP_PORT", 8080),
		APIToken:    getEnv("AETHER_API_TOKEN", ""),
		DBBackend:   DatabaseBackend(getEnv("AETHER_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("AETHER_DB_DSN", "aether.db"),

		ScratchRoot:     getEnv("AETHER_SCRATCH_ROOT", "./scratch"),
		FFmpegBin:       getEnv("AETHER_FFMPEG_BIN", "ffmpeg"),
		SegmentSeconds:  getEnvInt("AETHER_SEGMENT_SECONDS", 10),
		MinSegments:     getEnvInt("AETHER_MIN_SEGMENTS", 3),
		MaxSegments:     getEnvInt("AETHER_MAX_SEGMENTS", 12),
		TickInterval:    getEnvDuration("AETHER_TICK_INTERVAL", 10*time.Second),
		OnlineWellGrace: getEnvDuration("AETHER_ONLINE_WELL_GRACE", 2*time.Minute),
		RegressAfter:    getEnvInt("AETHER_REGRESS_AFTER_FAILURES", 3),
		OfflineAfter:    getEnvInt("AETHER_OFFLINE_AFTER_FAILURES", 10),
		EncodeWorkers:   getEnvInt("AETHER_ENCODE_WORKERS", runtime.NumCPU()),
		SceneWindow:     getEnvDuration("AETHER_SCENE_WINDOW", 5*time.Minute),
		EphemeralTTL:    getEnvDuration("AETHER_EPHEMERAL_TTL", time.Hour),

		JanitorInterval: getEnvDuration("AETHER_JANITOR_INTERVAL", time.Hour),
		RetentionDays:   getEnvInt("AETHER_RETENTION_DAYS", 2),

		AIBaseURL: getEnv("AETHER_AI_BASE_URL", ""),
		AIToken:   getEnv("AETHER_AI_TOKEN", ""),
		AITimeout: getEnvDuration("AETHER_AI_TIMEOUT", 30*time.Second),

		BootstrapFile: getEnv("AETHER_BOOTSTRAP_FILE", ""),

		StorageBackend: getEnv("AETHER_STORAGE_BACKEND", "fs"),
		MediaRoot:      getEnv("AETHER_MEDIA_ROOT", "./media"),
		S3AccessKeyID:  getEnvAny([]string{"AETHER_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretKey:    getEnvAny([]string{"AETHER_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:       getEnvAny([]string{"AETHER_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:       getEnv("AETHER_S3_BUCKET", ""),
		S3Endpoint:     getEnv("AETHER_S3_ENDPOINT", ""),
		S3UsePathStyle: getEnvBool("AETHER_S3_USE_PATH_STYLE", false),

		RedisAddr:     getEnv("AETHER_REDIS_ADDR", ""),
		RedisPassword: getEnv("AETHER_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("AETHER_REDIS_DB", 0),
		NATSURL:       getEnv("AETHER_NATS_URL", ""),

		TracingEnabled:    getEnvBool("AETHER_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("AETHER_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("AETHER_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("AETHER_DB_DSN must be provided")
	}
	if cfg.SegmentSeconds <= 0 {
		return nil, fmt.Errorf("AETHER_SEGMENT_SECONDS must be positive")
	}
	if cfg.MinSegments <= 0 || cfg.MaxSegments < cfg.MinSegments {
		return nil, fmt.Errorf("segment window [%d,%d] is invalid", cfg.MinSegments, cfg.MaxSegments)
	}
	if cfg.EncodeWorkers <= 0 {
		cfg.EncodeWorkers = 1
	}
	if cfg.StorageBackend != "fs" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("AETHER_S3_BUCKET must be set when the s3 storage backend is selected")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvAny(keys []string, def string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
