package model

import "time"

const (
	SessionStatusActive = "ACTIVE"
	SessionStatusClosed = "CLOSED"
)

// Device is one monitored endpoint, scoped to a single company. ID is the
// canonical record key; Identifier is the stable value assigned at
// provisioning and used by the desktop agent when registering.
type Device struct {
	ID              string     `json:"id"`
	Identifier      string     `json:"deviceIdentifier"`
	CompanyID       string     `json:"companyId"`
	Name            *string    `json:"name,omitempty"`
	Online          bool       `json:"online"`
	LastSeenAt      *time.Time `json:"lastSeenAt,omitempty"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Session groups captures recorded while a device was in use. System
// sessions are created by the gateway itself when a capture arrives with no
// user session active.
type Session struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"companyId"`
	DeviceID   string     `json:"deviceId"`
	Status     string     `json:"status"`
	IsSystem   bool       `json:"isSystemSession"`
	LoginTime  time.Time  `json:"loginTime"`
	LogoutTime *time.Time `json:"logoutTime,omitempty"`
}

// Capture is one stored screenshot referencing the session it belongs to.
// FilePath is the web-relative path under the screenshot root.
type Capture struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	FilePath   string    `json:"filePath"`
	CapturedAt time.Time `json:"capturedAt"`
}

// EmergencyPin records that a device has an emergency unlock PIN configured.
// Only the SHA-256 hash is stored or transmitted, never the plain PIN.
type EmergencyPin struct {
	DeviceID     string    `json:"deviceId"`
	PinHash      string    `json:"-"`
	ConfiguredAt time.Time `json:"configuredAt"`
}
