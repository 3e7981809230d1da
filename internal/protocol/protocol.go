// Package protocol defines the JSON wire messages exchanged between the
// gateway, desktop agents, and dashboard observers. Every message is a flat
// JSON object with a "type" discriminator.
package protocol

import "encoding/json"

// Message types received from clients.
const (
	TypeRegister         = "REGISTER"
	TypeHeartbeat        = "HEARTBEAT"
	TypeScreenshotResult = "SCREENSHOT_RESULT"
	TypeRequestLiveFrame = "REQUEST_LIVE_FRAME"
	TypeLiveFrame        = "LIVE_FRAME"
	TypeLiveFrameReady   = "LIVE_FRAME_READY"
)

// Message types sent to clients.
const (
	TypeRegistered      = "REGISTERED"
	TypeLockDevice      = "LOCK_DEVICE"
	TypeUnlockDevice    = "UNLOCK_DEVICE"
	TypeBlockInput      = "BLOCK_INPUT"
	TypeUnblockInput    = "UNBLOCK_INPUT"
	TypeCaptureScreen   = "CAPTURE_SCREEN"
	TypeSetEmergencyPin = "SET_EMERGENCY_PIN"
	TypeError           = "ERROR"
)

// Error reasons sent in ERROR replies.
const (
	ReasonInvalidJSON        = "Invalid JSON"
	ReasonRegisterFirst      = "Register first"
	ReasonFieldsRequired     = "deviceId and companyId required"
	ReasonDeviceNotFound     = "Device not found or does not belong to company"
	ReasonDeviceNotConnected = "Device not connected"
	ReasonDeviceIDRequired   = "deviceId required"
)

// Inbound is one decoded client message. Fields not present in the payload
// are left at their zero value; handlers validate what they need.
type Inbound struct {
	Type        string `json:"type"`
	DeviceID    string `json:"deviceId"`
	CompanyID   string `json:"companyId"`
	ImageBase64 string `json:"imageBase64"`
	Image       string `json:"image"`
	Timestamp   int64  `json:"timestamp"`
}

// Outbound is one message serialized to a client. Empty fields are omitted
// so every message type shares the single envelope.
type Outbound struct {
	Type      string `json:"type"`
	DeviceID  string `json:"deviceId,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
	Image     string `json:"image,omitempty"`
	PinHash   string `json:"pinHash,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Parse decodes a raw client payload. A non-nil error means the payload was
// not a JSON object of the expected shape; the connection stays usable.
func Parse(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, err
	}
	return msg, nil
}

// Registered acknowledges a successful registration with the canonical
// device ID.
func Registered(deviceID string) Outbound {
	return Outbound{Type: TypeRegistered, DeviceID: deviceID}
}

// ErrorReply builds an ERROR message with the given reason.
func ErrorReply(reason string) Outbound {
	return Outbound{Type: TypeError, Error: reason}
}

// Command builds a payload-free administrative command.
func Command(commandType string) Outbound {
	return Outbound{Type: commandType}
}

// SetEmergencyPin builds the SET_EMERGENCY_PIN command carrying the
// pre-hashed credential.
func SetEmergencyPin(pinHash string) Outbound {
	return Outbound{Type: TypeSetEmergencyPin, PinHash: pinHash}
}
