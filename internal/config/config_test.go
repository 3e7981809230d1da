package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ":4001", cfg.HTTPAddr)
	require.Equal(t, "/data/orionguard.db", cfg.DBPath)
	require.Equal(t, "/data", cfg.DBDir())
	require.Equal(t, 15*time.Second, cfg.SweepInterval)
	require.Equal(t, 30*time.Second, cfg.HeartbeatTimeout)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("HEARTBEAT_TIMEOUT", "20s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	require.Equal(t, ":9000", cfg.HTTPAddr)
	require.Equal(t, 5*time.Second, cfg.SweepInterval)
	require.Equal(t, 20*time.Second, cfg.HeartbeatTimeout)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_TimeoutForcedAboveInterval(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("HEARTBEAT_TIMEOUT", "10s")

	cfg := Load()
	require.Equal(t, 60*time.Second, cfg.HeartbeatTimeout)
}

func TestLoad_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("HEARTBEAT_TIMEOUT", "-5s")
	t.Setenv("LOG_LEVEL", "shouting")
	t.Setenv("HTTP_ADDR", "   ")

	cfg := Load()
	require.Equal(t, 15*time.Second, cfg.SweepInterval)
	require.Equal(t, 30*time.Second, cfg.HeartbeatTimeout)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Equal(t, ":4001", cfg.HTTPAddr)
}
