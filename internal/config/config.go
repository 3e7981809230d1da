package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultHTTPAddr         = ":4001"
	defaultDBPath           = "/data/orionguard.db"
	defaultScreenshotDir    = "/data/live-screenshots"
	defaultSweepInterval    = 15 * time.Second
	defaultHeartbeatTimeout = 30 * time.Second
)

// Config stores runtime settings loaded from environment variables.
type Config struct {
	HTTPAddr         string
	DBPath           string
	ScreenshotDir    string
	SweepInterval    time.Duration
	HeartbeatTimeout time.Duration
	LogLevel         slog.Level
}

// Load builds Config from environment variables using stable defaults. The
// heartbeat timeout is forced above the sweep interval so a device is never
// timed out between the heartbeat that proves it alive and the next tick.
func Load() Config {
	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:           getenv("DB_PATH", defaultDBPath),
		ScreenshotDir:    getenv("SCREENSHOT_DIR", defaultScreenshotDir),
		SweepInterval:    parseDuration("SWEEP_INTERVAL", defaultSweepInterval),
		HeartbeatTimeout: parseDuration("HEARTBEAT_TIMEOUT", defaultHeartbeatTimeout),
		LogLevel:         parseLogLevel(getenv("LOG_LEVEL", "info")),
	}
	if cfg.HeartbeatTimeout <= cfg.SweepInterval {
		cfg.HeartbeatTimeout = 2 * cfg.SweepInterval
	}
	return cfg
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
