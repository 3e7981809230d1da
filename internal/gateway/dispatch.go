package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orionguard/gateway/internal/protocol"
	"github.com/orionguard/gateway/internal/storage"
)

var (
	// ErrDeviceNotFound means the identifier resolves to no device record.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceOffline means the device exists but has no open connection.
	// Distinct from ErrDeviceNotFound so callers can render "offline".
	ErrDeviceOffline = errors.New("device offline")
)

// Dispatcher delivers administrative commands to connected devices. Success
// means handed to the transport, not executed by the device; only
// CAPTURE_SCREEN and REQUEST_LIVE_FRAME have a defined asynchronous reply.
type Dispatcher struct {
	registry  *Registry
	directory Directory
	logger    *slog.Logger
}

func NewDispatcher(registry *Registry, directory Directory, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, directory: directory, logger: logger}
}

func (d *Dispatcher) Lock(ctx context.Context, deviceID string) error {
	return d.send(ctx, deviceID, protocol.Command(protocol.TypeLockDevice))
}

func (d *Dispatcher) Unlock(ctx context.Context, deviceID string) error {
	return d.send(ctx, deviceID, protocol.Command(protocol.TypeUnlockDevice))
}

func (d *Dispatcher) BlockInput(ctx context.Context, deviceID string) error {
	return d.send(ctx, deviceID, protocol.Command(protocol.TypeBlockInput))
}

func (d *Dispatcher) UnblockInput(ctx context.Context, deviceID string) error {
	return d.send(ctx, deviceID, protocol.Command(protocol.TypeUnblockInput))
}

func (d *Dispatcher) CaptureScreen(ctx context.Context, deviceID string) error {
	return d.send(ctx, deviceID, protocol.Command(protocol.TypeCaptureScreen))
}

func (d *Dispatcher) RequestLiveFrame(ctx context.Context, deviceID string) error {
	return d.send(ctx, deviceID, protocol.Command(protocol.TypeRequestLiveFrame))
}

// SetEmergencyPin pushes a pre-hashed emergency unlock credential. The
// gateway never sees the plain PIN.
func (d *Dispatcher) SetEmergencyPin(ctx context.Context, deviceID, pinHash string) error {
	return d.send(ctx, deviceID, protocol.SetEmergencyPin(pinHash))
}

func (d *Dispatcher) send(ctx context.Context, deviceID string, msg protocol.Outbound) error {
	device, err := d.directory.FindByIdentifier(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		return fmt.Errorf("resolve device %s: %w", deviceID, err)
	}

	conn, ok := d.registry.Get(device.Identifier)
	if !ok || !conn.Open() {
		return fmt.Errorf("%w: %s", ErrDeviceOffline, device.Identifier)
	}
	if err := conn.Send(msg); err != nil {
		return fmt.Errorf("%w: %s: send: %v", ErrDeviceOffline, device.Identifier, err)
	}

	d.logger.Debug("command dispatched", "command", msg.Type, "device", device.Identifier)
	return nil
}
