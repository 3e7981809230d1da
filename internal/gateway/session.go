package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/orionguard/gateway/internal/protocol"
	"github.com/orionguard/gateway/internal/storage"
)

// Session is the per-connection message handler. The transport layer runs
// one Session per WebSocket connection and feeds it messages in arrival
// order; all cross-connection state lives in the shared registry.
type Session struct {
	conn       Conn
	registry   *Registry
	directory  Directory
	ingestor   *Ingestor
	relay      *Relay
	logger     *slog.Logger
	now        func() time.Time
	deviceID   string // canonical record ID, set after REGISTER
	identifier string // registry key, empty while unauthenticated
}

// NewSession creates the handler for one freshly accepted connection.
func (g *Gateway) NewSession(conn Conn) *Session {
	return &Session{
		conn:      conn,
		registry:  g.registry,
		directory: g.directory,
		ingestor:  g.ingestor,
		relay:     g.relay,
		logger:    g.logger,
		now:       g.now,
	}
}

// Registered reports whether the connection completed registration.
func (s *Session) Registered() bool {
	return s.identifier != ""
}

// HandleMessage processes one raw client payload. Errors are answered on
// the connection and never propagate; nothing here is fatal to the process.
func (s *Session) HandleMessage(ctx context.Context, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		s.reply(protocol.ErrorReply(protocol.ReasonInvalidJSON))
		return
	}

	switch msg.Type {
	case protocol.TypeRegister:
		s.handleRegister(ctx, msg)
	case protocol.TypeRequestLiveFrame:
		// Dashboards never register; frame requests are allowed any time.
		s.relay.HandleFrameRequest(ctx, s.conn, msg.DeviceID)
	case protocol.TypeHeartbeat:
		if !s.Registered() {
			s.reply(protocol.ErrorReply(protocol.ReasonRegisterFirst))
			return
		}
		s.handleHeartbeat(ctx)
	case protocol.TypeScreenshotResult:
		if !s.Registered() {
			s.reply(protocol.ErrorReply(protocol.ReasonRegisterFirst))
			return
		}
		s.ingestor.Ingest(ctx, msg.DeviceID, msg.ImageBase64)
	case protocol.TypeLiveFrame, protocol.TypeLiveFrameReady:
		if !s.Registered() {
			s.reply(protocol.ErrorReply(protocol.ReasonRegisterFirst))
			return
		}
		s.relay.HandleDeviceFrame(ctx, msg)
	default:
		if !s.Registered() {
			s.reply(protocol.ErrorReply(protocol.ReasonRegisterFirst))
			return
		}
		s.reply(protocol.ErrorReply("unsupported message type: " + msg.Type))
	}
}

func (s *Session) handleRegister(ctx context.Context, msg protocol.Inbound) {
	if msg.DeviceID == "" || msg.CompanyID == "" {
		s.reply(protocol.ErrorReply(protocol.ReasonFieldsRequired))
		return
	}

	device, err := s.directory.FindByIdentifierAndCompany(ctx, msg.DeviceID, msg.CompanyID)
	if errors.Is(err, storage.ErrNotFound) {
		s.reply(protocol.ErrorReply(protocol.ReasonDeviceNotFound))
		return
	}
	if err != nil {
		s.logger.Error("registration lookup failed", "device", msg.DeviceID, "err", err)
		s.reply(protocol.ErrorReply("registration failed"))
		return
	}

	// A registered connection may REGISTER again under another identifier.
	// The previous identifier's entry keeps pointing at this conn on
	// purpose; it stops counting as connected when the conn closes, and
	// close-out only reclaims the current identifier's entry.
	s.registry.Put(device.Identifier, s.conn)
	s.identifier = device.Identifier
	s.deviceID = device.ID

	now := s.now()
	if err := s.directory.SetOnline(ctx, device.ID, true); err != nil {
		s.logger.Error("failed to mark device online", "device", device.Identifier, "err", err)
	}
	if err := s.directory.TouchHeartbeat(ctx, device.ID, now); err != nil {
		s.logger.Error("failed to stamp heartbeat", "device", device.Identifier, "err", err)
	}

	s.logger.Info("device registered", "device", device.Identifier, "company", device.CompanyID)
	s.reply(protocol.Registered(device.ID))
}

// handleHeartbeat refreshes the liveness stamp and re-marks the device
// online, undoing an earlier sweep timeout if the socket survived it.
func (s *Session) handleHeartbeat(ctx context.Context) {
	now := s.now()
	if err := s.directory.TouchHeartbeat(ctx, s.deviceID, now); err != nil {
		s.logger.Error("failed to stamp heartbeat", "device", s.identifier, "err", err)
		return
	}
	if err := s.directory.SetOnline(ctx, s.deviceID, true); err != nil {
		s.logger.Error("failed to mark device online", "device", s.identifier, "err", err)
	}
}

// Close runs when the transport reports the connection gone. The registry
// entry is removed only if this connection still owns it; a session
// superseded by a re-register leaves presence to its replacement.
func (s *Session) Close(ctx context.Context) {
	s.registry.RemoveObserver(s.conn)
	if !s.Registered() {
		return
	}
	if !s.registry.Remove(s.identifier, s.conn) {
		s.logger.Debug("connection superseded, skipping offline mark", "device", s.identifier)
		return
	}
	if err := s.directory.SetOnline(ctx, s.deviceID, false); err != nil {
		s.logger.Error("failed to mark device offline", "device", s.identifier, "err", err)
	}
	s.logger.Info("device disconnected", "device", s.identifier)
}

func (s *Session) reply(msg protocol.Outbound) {
	if err := s.conn.Send(msg); err != nil {
		s.logger.Debug("reply failed", "type", msg.Type, "err", err)
	}
}
