package gateway

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orionguard/gateway/internal/model"
)

func newTestIngestor(devices ...model.Device) (*Ingestor, *fakeSessionStore, *fakeBlobStore) {
	sessions := newFakeSessionStore()
	blobs := newFakeBlobStore()
	ingestor := NewIngestor(newFakeDirectory(devices...), sessions, blobs, discardLogger())
	return ingestor, sessions, blobs
}

func TestIngest_DropsEmptyAndUnknown(t *testing.T) {
	ingestor, sessions, blobs := newTestIngestor(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	ctx := context.Background()
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	ingestor.Ingest(ctx, "", payload)
	ingestor.Ingest(ctx, "DEV-001", "")
	ingestor.Ingest(ctx, "DEV-404", payload)
	ingestor.Ingest(ctx, "DEV-001", "not base64!!!")

	require.Empty(t, blobs.fileNames())
	require.Empty(t, sessions.allCaptures())
}

func TestIngest_CreatesSystemSessionWhenNoneActive(t *testing.T) {
	ingestor, sessions, blobs := newTestIngestor(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	ingestor.Ingest(context.Background(), "DEV-001", payload)

	captures := sessions.allCaptures()
	require.Len(t, captures, 1)
	require.True(t, strings.HasPrefix(captures[0].FilePath, "live-screenshots/DEV-001-"))

	session, err := sessions.FindActiveSession(context.Background(), "id-1")
	require.NoError(t, err)
	require.True(t, session.IsSystem)
	require.Equal(t, session.ID, captures[0].SessionID)

	require.Len(t, blobs.fileNames(), 1)
}

func TestIngest_ReusesActiveSession(t *testing.T) {
	ingestor, sessions, _ := newTestIngestor(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	ctx := context.Background()
	existing, err := sessions.CreateSystemSession(ctx, "co", "id-1")
	require.NoError(t, err)

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	ingestor.Ingest(ctx, "DEV-001", payload)

	captures := sessions.allCaptures()
	require.Len(t, captures, 1)
	require.Equal(t, existing.ID, captures[0].SessionID)
}

func TestIngest_AcceptsCanonicalID(t *testing.T) {
	ingestor, sessions, _ := newTestIngestor(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	ingestor.Ingest(context.Background(), "id-1", payload)

	captures := sessions.allCaptures()
	require.Len(t, captures, 1)
	// File names derive from the provisioning identifier regardless of how
	// the device addressed itself.
	require.True(t, strings.HasPrefix(captures[0].FilePath, "live-screenshots/DEV-001-"))
}

func TestIngest_BlobFailureRecordsNothing(t *testing.T) {
	ingestor, sessions, blobs := newTestIngestor(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	blobs.writeErr = errConnBroken
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	ingestor.Ingest(context.Background(), "DEV-001", payload)

	require.Empty(t, sessions.allCaptures())
}

func TestCaptureFileName_SanitizesIdentifier(t *testing.T) {
	at := time.UnixMilli(1756300000000)
	name := CaptureFileName("DEV 001/../x", at)
	require.Equal(t, "DEV_001____x-1756300000000.png", name)
}
