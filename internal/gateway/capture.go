package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/orionguard/gateway/internal/blob"
	"github.com/orionguard/gateway/internal/storage"
)

var captureNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Ingestor accepts completed screenshot payloads from devices and hands
// them to the blob and session stores. The whole path is fire-and-forget:
// devices get no acknowledgement and failures are logged, not retried.
type Ingestor struct {
	directory Directory
	sessions  SessionStore
	blobs     BlobStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewIngestor(directory Directory, sessions SessionStore, blobs BlobStore, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		directory: directory,
		sessions:  sessions,
		blobs:     blobs,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest validates and persists one SCREENSHOT_RESULT payload.
func (i *Ingestor) Ingest(ctx context.Context, deviceID, imageBase64 string) {
	if deviceID == "" || imageBase64 == "" {
		i.logger.Debug("screenshot dropped, missing deviceId or imageBase64")
		return
	}

	device, err := i.directory.FindByIdentifier(ctx, deviceID)
	if err != nil {
		// No error channel back to the device on this path.
		i.logger.Warn("screenshot dropped, unknown device", "device", deviceID, "err", err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		i.logger.Warn("screenshot dropped, invalid base64", "device", device.Identifier, "err", err)
		return
	}

	now := i.now()
	name := CaptureFileName(device.Identifier, now)
	if err := i.blobs.Write(name, data); err != nil {
		i.logger.Error("failed to save screenshot", "device", device.Identifier, "file", name, "err", err)
		return
	}

	session, err := i.sessions.FindActiveSession(ctx, device.ID)
	if errors.Is(err, storage.ErrNotFound) {
		session, err = i.sessions.CreateSystemSession(ctx, device.CompanyID, device.ID)
		if err == nil {
			i.logger.Info("created system session for screenshot", "device", device.Identifier, "session", session.ID)
		}
	}
	if err != nil {
		i.logger.Error("failed to resolve session for screenshot", "device", device.Identifier, "err", err)
		return
	}

	capture, err := i.sessions.CreateCapture(ctx, session.ID, blob.WebPath(name), now)
	if err != nil {
		i.logger.Error("failed to record screenshot", "device", device.Identifier, "err", err)
		return
	}
	i.logger.Info("screenshot stored", "device", device.Identifier, "capture", capture.ID, "bytes", len(data))
}

// CaptureFileName derives a collision-resistant file name from the device
// identifier and capture time.
func CaptureFileName(identifier string, at time.Time) string {
	safe := captureNameSanitizer.ReplaceAllString(identifier, "_")
	return safe + "-" + strconv.FormatInt(at.UnixMilli(), 10) + ".png"
}
