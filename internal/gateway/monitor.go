package gateway

import (
	"context"
	"log/slog"
	"time"
)

// Monitor periodically demotes devices whose heartbeat has lapsed. It is
// the only path that flips a device offline without an explicit connection
// close, and it never touches the connection registry: a timed-out device
// may still hold a nominally open socket, and a later heartbeat re-marks
// it online.
type Monitor struct {
	directory Directory
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewMonitor builds a sweep with the given tick interval and staleness
// threshold. The threshold must exceed the interval or scheduling jitter
// produces false timeouts; config enforces that.
func NewMonitor(directory Directory, interval, threshold time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		directory: directory,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps on a fixed period until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce demotes every online device whose last heartbeat is missing or
// older than the threshold. Per-device directory errors are logged and the
// sweep continues with the next candidate.
func (m *Monitor) SweepOnce(ctx context.Context) {
	cutoff := m.now().Add(-m.threshold)
	stale, err := m.directory.ListStaleOnline(ctx, cutoff)
	if err != nil {
		m.logger.Error("liveness sweep failed", "err", err)
		return
	}

	for _, device := range stale {
		if err := m.directory.SetOnline(ctx, device.ID, false); err != nil {
			m.logger.Error("failed to mark device offline", "device", device.Identifier, "err", err)
			continue
		}
		m.logger.Info("device heartbeat timed out", "device", device.Identifier)
	}
}
