package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/orionguard/gateway/internal/blob"
	"github.com/orionguard/gateway/internal/config"
	"github.com/orionguard/gateway/internal/gateway"
	"github.com/orionguard/gateway/internal/httpapi"
	"github.com/orionguard/gateway/internal/logging"
	"github.com/orionguard/gateway/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A local .env is optional; real deployments set the environment.
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}

	repo, err := storage.New(ctx, cfg.DBPath, logging.WithComponent(logger, "storage"))
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	blobs, err := blob.New(cfg.ScreenshotDir)
	if err != nil {
		logger.Error("failed to initialize screenshot store", "err", err)
		os.Exit(1)
	}

	gw := gateway.New(repo, repo, blobs, logging.WithComponent(logger, "gateway"))

	monitor := gateway.NewMonitor(
		repo,
		cfg.SweepInterval,
		cfg.HeartbeatTimeout,
		logging.WithComponent(logger, "liveness"),
	)
	go monitor.Run(ctx)

	api := httpapi.New(gw, repo, blobs, logging.WithComponent(logger, "http"))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("gateway starting", "addr", httpServer.Addr,
		"sweep_interval", cfg.SweepInterval.String(),
		"heartbeat_timeout", cfg.HeartbeatTimeout.String())
	if err := httpapi.RunServer(ctx, httpServer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("gateway terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}
