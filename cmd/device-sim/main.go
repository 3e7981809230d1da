// Command device-sim emulates a desktop agent against the gateway: it
// registers, heartbeats on an interval, answers CAPTURE_SCREEN with a
// placeholder frame, and logs lock/unlock commands. Useful for exercising
// the gateway without a real desktop client.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/orionguard/gateway/internal/logging"
	"github.com/orionguard/gateway/internal/protocol"
)

// 1x1 transparent PNG, stands in for a real screen capture.
const placeholderFrame = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

type simulator struct {
	wsURL             string
	deviceID          string
	companyID         string
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	logger := logging.New(slog.LevelDebug)

	sim := &simulator{
		wsURL:             env("WS_URL", "ws://localhost:4001/ws"),
		deviceID:          env("DEVICE_ID", "ORION-DEVICE-001"),
		companyID:         env("COMPANY_ID", ""),
		heartbeatInterval: envDuration("HEARTBEAT_INTERVAL", 10*time.Second),
		logger:            logger,
	}
	if sim.companyID == "" {
		logger.Error("COMPANY_ID is required")
		os.Exit(1)
	}

	sim.run(ctx)
}

// run keeps a session alive, reconnecting with capped exponential backoff.
func (s *simulator) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.runSession(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("session ended", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 20*time.Second {
			backoff *= 2
		}
	}
}

func (s *simulator) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.logger.Info("connected", "url", s.wsURL)

	register := map[string]any{
		"type":      protocol.TypeRegister,
		"deviceId":  s.deviceID,
		"companyId": s.companyID,
	}
	if err := conn.WriteJSON(register); err != nil {
		return err
	}

	// The write side is shared by the heartbeat goroutine and command
	// replies; serialize through a channel and let the read loop drive.
	sendCh := make(chan any, 8)
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				return
			case <-ticker.C:
				select {
				case sendCh <- map[string]any{"type": protocol.TypeHeartbeat, "deviceId": s.deviceID}:
				default:
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-sessionCtx.Done():
				return
			case msg := <-sendCh:
				if err := conn.WriteJSON(msg); err != nil {
					s.logger.Warn("send failed", "err", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		var msg protocol.Outbound
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		s.handleCommand(msg, sendCh)
	}
}

func (s *simulator) handleCommand(msg protocol.Outbound, sendCh chan<- any) {
	switch msg.Type {
	case protocol.TypeRegistered:
		s.logger.Info("registered", "canonicalId", msg.DeviceID)
	case protocol.TypeLockDevice:
		s.logger.Info("LOCK_DEVICE received; a real agent shows the lock window")
	case protocol.TypeUnlockDevice:
		s.logger.Info("UNLOCK_DEVICE received; a real agent closes the lock window")
	case protocol.TypeBlockInput:
		s.logger.Info("BLOCK_INPUT received")
	case protocol.TypeUnblockInput:
		s.logger.Info("UNBLOCK_INPUT received")
	case protocol.TypeSetEmergencyPin:
		s.logger.Info("SET_EMERGENCY_PIN received", "hashLen", len(msg.PinHash))
	case protocol.TypeCaptureScreen, protocol.TypeRequestLiveFrame:
		s.logger.Info("capture requested", "command", msg.Type)
		sendCh <- map[string]any{
			"type":        protocol.TypeScreenshotResult,
			"deviceId":    s.deviceID,
			"imageBase64": placeholderFrame,
		}
	case protocol.TypeError:
		s.logger.Warn("gateway error", "error", msg.Error)
	default:
		s.logger.Debug("unhandled message", "type", msg.Type)
	}
}

func env(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
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
