// Package gateway implements the real-time command-and-control core: the
// connection registry, the registration state machine, command dispatch,
// capture ingestion, the live-frame relay, and the liveness monitor.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/orionguard/gateway/internal/model"
)

// Directory resolves device identity and tracks persisted presence. The
// sqlite repository implements it in production; tests use in-memory fakes.
type Directory interface {
	FindByIdentifierAndCompany(ctx context.Context, identifier, companyID string) (model.Device, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.Device, error)
	SetOnline(ctx context.Context, deviceID string, online bool) error
	TouchHeartbeat(ctx context.Context, deviceID string, at time.Time) error
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]model.Device, error)
}

// SessionStore persists sessions and capture records.
type SessionStore interface {
	FindActiveSession(ctx context.Context, deviceID string) (model.Session, error)
	CreateSystemSession(ctx context.Context, companyID, deviceID string) (model.Session, error)
	CreateCapture(ctx context.Context, sessionID, filePath string, capturedAt time.Time) (model.Capture, error)
}

// BlobStore writes captured frame bytes.
type BlobStore interface {
	Write(name string, data []byte) error
}

// Gateway wires the core components around one shared registry and hands
// out per-connection sessions to the transport layer.
type Gateway struct {
	registry   *Registry
	directory  Directory
	dispatcher *Dispatcher
	ingestor   *Ingestor
	relay      *Relay
	logger     *slog.Logger
	now        func() time.Time
}

func New(directory Directory, sessions SessionStore, blobs BlobStore, logger *slog.Logger) *Gateway {
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry, directory, logger)
	return &Gateway{
		registry:   registry,
		directory:  directory,
		dispatcher: dispatcher,
		ingestor:   NewIngestor(directory, sessions, blobs, logger),
		relay:      NewRelay(registry, dispatcher, directory, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// Registry exposes the shared connection registry, for presence queries.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Dispatcher exposes command delivery for the HTTP command API.
func (g *Gateway) Dispatcher() *Dispatcher {
	return g.dispatcher
}
