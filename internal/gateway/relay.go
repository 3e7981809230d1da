package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/orionguard/gateway/internal/protocol"
)

// Relay routes dashboard frame requests to devices and fans device frames
// out to every observer. Fan-out is request-agnostic: all observers receive
// every frame and filter by deviceId client-side.
type Relay struct {
	registry   *Registry
	dispatcher *Dispatcher
	directory  Directory
	logger     *slog.Logger
}

func NewRelay(registry *Registry, dispatcher *Dispatcher, directory Directory, logger *slog.Logger) *Relay {
	return &Relay{registry: registry, dispatcher: dispatcher, directory: directory, logger: logger}
}

// HandleFrameRequest subscribes the requesting connection as an observer
// and asks the target device for a frame. Delivery failures are reported to
// the requester only, never broadcast.
func (r *Relay) HandleFrameRequest(ctx context.Context, requester Conn, deviceID string) {
	if deviceID == "" {
		_ = requester.Send(protocol.ErrorReply(protocol.ReasonDeviceIDRequired))
		return
	}

	r.registry.AddObserver(requester)

	if err := r.dispatcher.RequestLiveFrame(ctx, deviceID); err != nil {
		reason := protocol.ReasonDeviceNotConnected
		if errors.Is(err, ErrDeviceNotFound) {
			reason = "Device not found"
		}
		r.logger.Debug("live frame request failed", "device", deviceID, "err", err)
		_ = requester.Send(protocol.ErrorReply(reason))
	}
}

// HandleDeviceFrame rebroadcasts a device-sourced LIVE_FRAME or
// LIVE_FRAME_READY to all observers, normalized to the canonical device ID
// in case the device reported an alias.
func (r *Relay) HandleDeviceFrame(ctx context.Context, msg protocol.Inbound) {
	out := protocol.Outbound{
		Type:      msg.Type,
		DeviceID:  msg.DeviceID,
		CompanyID: msg.CompanyID,
		Image:     msg.Image,
		Timestamp: msg.Timestamp,
	}
	if device, err := r.directory.FindByIdentifier(ctx, msg.DeviceID); err == nil {
		out.DeviceID = device.ID
		if out.CompanyID == "" {
			out.CompanyID = device.CompanyID
		}
	} else {
		r.logger.Debug("frame from unresolved device, broadcasting as reported", "device", msg.DeviceID, "err", err)
	}

	r.registry.Broadcast(out)
}
