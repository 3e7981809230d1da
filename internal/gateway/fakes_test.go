package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orionguard/gateway/internal/model"
	"github.com/orionguard/gateway/internal/protocol"
	"github.com/orionguard/gateway/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn records every message sent through it.
type fakeConn struct {
	mu      sync.Mutex
	sent    []protocol.Outbound
	closed  bool
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if msg, ok := v.(protocol.Outbound); ok {
		c.sent = append(c.sent, msg)
	}
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) messages() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Outbound, len(c.sent))
	copy(out, c.sent)
	return out
}

// waitForMessage blocks until the connection has received at least one
// message; broadcast delivery is asynchronous.
func waitForMessage(t *testing.T, conn *fakeConn) protocol.Outbound {
	t.Helper()
	var msg protocol.Outbound
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = conn.lastMessage()
		return ok
	}, time.Second, 5*time.Millisecond)
	return msg
}

func (c *fakeConn) lastMessage() (protocol.Outbound, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return protocol.Outbound{}, false
	}
	return c.sent[len(c.sent)-1], true
}

// fakeDirectory is an in-memory Directory keyed by provisioning identifier.
type fakeDirectory struct {
	mu         sync.Mutex
	devices    map[string]model.Device
	online     map[string]bool
	heartbeats map[string]time.Time
}

func newFakeDirectory(devices ...model.Device) *fakeDirectory {
	d := &fakeDirectory{
		devices:    map[string]model.Device{},
		online:     map[string]bool{},
		heartbeats: map[string]time.Time{},
	}
	for _, device := range devices {
		d.devices[device.Identifier] = device
	}
	return d
}

func (d *fakeDirectory) find(identifier string) (model.Device, bool) {
	if device, ok := d.devices[identifier]; ok {
		return device, true
	}
	for _, device := range d.devices {
		if device.ID == identifier {
			return device, true
		}
	}
	return model.Device{}, false
}

func (d *fakeDirectory) FindByIdentifierAndCompany(_ context.Context, identifier, companyID string) (model.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	device, ok := d.find(identifier)
	if !ok || device.CompanyID != companyID {
		return model.Device{}, storage.ErrNotFound
	}
	return device, nil
}

func (d *fakeDirectory) FindByIdentifier(_ context.Context, identifier string) (model.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	device, ok := d.find(identifier)
	if !ok {
		return model.Device{}, storage.ErrNotFound
	}
	return device, nil
}

func (d *fakeDirectory) SetOnline(_ context.Context, deviceID string, online bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.online[deviceID] = online
	return nil
}

func (d *fakeDirectory) TouchHeartbeat(_ context.Context, deviceID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.heartbeats[deviceID] = at
	return nil
}

func (d *fakeDirectory) ListStaleOnline(_ context.Context, cutoff time.Time) ([]model.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var stale []model.Device
	for _, device := range d.devices {
		if !d.online[device.ID] {
			continue
		}
		beat, ok := d.heartbeats[device.ID]
		if !ok || beat.Before(cutoff) {
			stale = append(stale, device)
		}
	}
	return stale, nil
}

func (d *fakeDirectory) isOnline(deviceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[deviceID]
}

func (d *fakeDirectory) heartbeatAt(deviceID string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.heartbeats[deviceID]
	return at, ok
}

// fakeSessionStore is an in-memory SessionStore.
type fakeSessionStore struct {
	mu       sync.Mutex
	active   map[string]model.Session
	captures []model.Capture
	nextID   int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{active: map[string]model.Session{}}
}

func (s *fakeSessionStore) FindActiveSession(_ context.Context, deviceID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.active[deviceID]
	if !ok {
		return model.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) CreateSystemSession(_ context.Context, companyID, deviceID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	session := model.Session{
		ID:        "session-" + strconv.Itoa(s.nextID),
		CompanyID: companyID,
		DeviceID:  deviceID,
		Status:    model.SessionStatusActive,
		IsSystem:  true,
		LoginTime: time.Now().UTC(),
	}
	s.active[deviceID] = session
	return session, nil
}

func (s *fakeSessionStore) CreateCapture(_ context.Context, sessionID, filePath string, capturedAt time.Time) (model.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capture := model.Capture{
		ID:         "capture-" + filePath,
		SessionID:  sessionID,
		FilePath:   filePath,
		CapturedAt: capturedAt,
	}
	s.captures = append(s.captures, capture)
	return capture, nil
}

func (s *fakeSessionStore) allCaptures() []model.Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Capture, len(s.captures))
	copy(out, s.captures)
	return out
}

// fakeBlobStore records written blobs in memory.
type fakeBlobStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	writeErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{files: map[string][]byte{}}
}

func (b *fakeBlobStore) Write(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.files[name] = data
	return nil
}

func (b *fakeBlobStore) fileNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	return names
}

var errConnBroken = errors.New("connection broken")
