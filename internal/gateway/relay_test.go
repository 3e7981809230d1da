package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orionguard/gateway/internal/model"
	"github.com/orionguard/gateway/internal/protocol"
)

func newTestRelay(devices ...model.Device) (*Relay, *Registry) {
	registry := NewRegistry()
	directory := newFakeDirectory(devices...)
	dispatcher := NewDispatcher(registry, directory, discardLogger())
	return NewRelay(registry, dispatcher, directory, discardLogger()), registry
}

func TestFrameRequest_MissingDeviceID(t *testing.T) {
	relay, _ := newTestRelay()
	requester := newFakeConn()

	relay.HandleFrameRequest(context.Background(), requester, "")

	msg, ok := requester.lastMessage()
	require.True(t, ok)
	require.Equal(t, protocol.TypeError, msg.Type)
	require.Equal(t, protocol.ReasonDeviceIDRequired, msg.Error)
}

func TestFrameRequest_ForwardsToDevice(t *testing.T) {
	relay, registry := newTestRelay(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	device := newFakeConn()
	registry.Put("DEV-001", device)
	requester := newFakeConn()

	relay.HandleFrameRequest(context.Background(), requester, "DEV-001")

	msg, ok := device.lastMessage()
	require.True(t, ok)
	require.Equal(t, protocol.TypeRequestLiveFrame, msg.Type)
	require.Empty(t, requester.messages(), "no error reply on success")
}

func TestFrameRequest_ErrorGoesToRequesterOnly(t *testing.T) {
	relay, registry := newTestRelay(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	bystander := newFakeConn()
	registry.AddObserver(bystander)

	requester := newFakeConn()
	relay.HandleFrameRequest(context.Background(), requester, "DEV-001")

	msg, ok := requester.lastMessage()
	require.True(t, ok)
	require.Equal(t, protocol.ReasonDeviceNotConnected, msg.Error)
	require.Empty(t, bystander.messages(), "failures are never broadcast")
}

func TestFrameRequest_NotFoundVersusOffline(t *testing.T) {
	relay, _ := newTestRelay(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})

	requester := newFakeConn()
	relay.HandleFrameRequest(context.Background(), requester, "DEV-404")
	msg, _ := requester.lastMessage()
	require.Equal(t, "Device not found", msg.Error)

	requester = newFakeConn()
	relay.HandleFrameRequest(context.Background(), requester, "DEV-001")
	msg, _ = requester.lastMessage()
	require.Equal(t, protocol.ReasonDeviceNotConnected, msg.Error)
}

func TestFrameRequest_SubscribesBeforeDispatch(t *testing.T) {
	relay, registry := newTestRelay(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	device := newFakeConn()
	registry.Put("DEV-001", device)

	requester := newFakeConn()
	relay.HandleFrameRequest(context.Background(), requester, "DEV-001")

	// A frame arriving immediately after the request reaches the requester.
	relay.HandleDeviceFrame(context.Background(), protocol.Inbound{
		Type: protocol.TypeLiveFrame, DeviceID: "DEV-001", Image: "aGk=",
	})
	msg := waitForMessage(t, requester)
	require.Equal(t, protocol.TypeLiveFrame, msg.Type)
}

func TestDeviceFrame_FanOutWithCanonicalID(t *testing.T) {
	relay, registry := newTestRelay(model.Device{ID: "id-1", Identifier: "DEV-001", CompanyID: "co"})
	first := newFakeConn()
	second := newFakeConn()
	registry.AddObserver(first)
	registry.AddObserver(second)

	relay.HandleDeviceFrame(context.Background(), protocol.Inbound{
		Type:      protocol.TypeLiveFrame,
		DeviceID:  "DEV-001",
		Image:     "aGk=",
		Timestamp: 1756300000000,
	})

	for _, observer := range []*fakeConn{first, second} {
		msg := waitForMessage(t, observer)
		require.Equal(t, protocol.TypeLiveFrame, msg.Type)
		require.Equal(t, "id-1", msg.DeviceID, "frames carry the canonical record ID")
		require.Equal(t, "co", msg.CompanyID)
		require.Equal(t, "aGk=", msg.Image)
		require.Equal(t, int64(1756300000000), msg.Timestamp)
	}
}

func TestDeviceFrame_UnresolvedDeviceBroadcastAsReported(t *testing.T) {
	relay, registry := newTestRelay()
	observer := newFakeConn()
	registry.AddObserver(observer)

	relay.HandleDeviceFrame(context.Background(), protocol.Inbound{
		Type: protocol.TypeLiveFrameReady, DeviceID: "DEV-GHOST", Image: "aGk=",
	})

	msg := waitForMessage(t, observer)
	require.Equal(t, protocol.TypeLiveFrameReady, msg.Type)
	require.Equal(t, "DEV-GHOST", msg.DeviceID)
}
