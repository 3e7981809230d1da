package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/orionguard/gateway/internal/blob"
	"github.com/orionguard/gateway/internal/gateway"
	"github.com/orionguard/gateway/internal/model"
	"github.com/orionguard/gateway/internal/storage"
)

const (
	pinMinLength = 4
	pinMaxLength = 8
)

// DeviceStore is the directory surface the HTTP API needs beyond command
// dispatch.
type DeviceStore interface {
	ListDevices(ctx context.Context, companyID string) ([]model.Device, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.Device, error)
	SetEmergencyPin(ctx context.Context, deviceID, pinHash string, at time.Time) error
	GetEmergencyPin(ctx context.Context, deviceID string) (model.EmergencyPin, error)
}

// API groups HTTP handlers and dependencies.
type API struct {
	gateway  *gateway.Gateway
	store    DeviceStore
	blobs    *blob.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates HTTP handlers with explicit dependencies.
func New(gw *gateway.Gateway, store DeviceStore, blobs *blob.Store, logger *slog.Logger) *API {
	return &API{
		gateway: gw,
		store:   store,
		blobs:   blobs,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Devices and dashboards connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Health reports service liveness and the connected-device count.
func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	connected := len(a.gateway.Registry().ConnectedIdentifiers())
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "connectedDevices": connected})
}

type commandRequest struct {
	DeviceID string `json:"deviceId"`
	Command  string `json:"command"`
}

// sendCommand delivers one administrative command to a connected device.
func (a *API) sendCommand(w http.ResponseWriter, r *http.Request) {
	var payload commandRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if payload.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "deviceId is required")
		return
	}

	var err error
	switch payload.Command {
	case "LOCK":
		err = a.gateway.Dispatcher().Lock(r.Context(), payload.DeviceID)
	case "UNLOCK":
		err = a.gateway.Dispatcher().Unlock(r.Context(), payload.DeviceID)
	case "CAPTURE_SCREEN":
		err = a.gateway.Dispatcher().CaptureScreen(r.Context(), payload.DeviceID)
	case "BLOCK_INPUT":
		err = a.gateway.Dispatcher().BlockInput(r.Context(), payload.DeviceID)
	case "UNBLOCK_INPUT":
		err = a.gateway.Dispatcher().UnblockInput(r.Context(), payload.DeviceID)
	default:
		writeError(w, http.StatusBadRequest, "invalid_command",
			"command must be LOCK, UNLOCK, CAPTURE_SCREEN, BLOCK_INPUT, or UNBLOCK_INPUT")
		return
	}

	if a.writeDispatchError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type emergencyPinRequest struct {
	Pin        string `json:"pin"`
	ConfirmPin string `json:"confirmPin"`
}

// setEmergencyPin validates, hashes, stores, and pushes an emergency unlock
// PIN. The plain PIN never leaves this handler.
func (a *API) setEmergencyPin(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var payload emergencyPinRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if payload.Pin == "" || payload.ConfirmPin == "" {
		writeError(w, http.StatusBadRequest, "invalid_pin", "pin and confirmPin are required")
		return
	}
	if payload.Pin != payload.ConfirmPin {
		writeError(w, http.StatusBadRequest, "invalid_pin", "PIN and confirm PIN do not match")
		return
	}
	if len(payload.Pin) < pinMinLength || len(payload.Pin) > pinMaxLength {
		writeError(w, http.StatusBadRequest, "invalid_pin",
			fmt.Sprintf("PIN must be %d-%d digits", pinMinLength, pinMaxLength))
		return
	}
	for _, ch := range payload.Pin {
		if ch < '0' || ch > '9' {
			writeError(w, http.StatusBadRequest, "invalid_pin", "PIN must contain only digits")
			return
		}
	}

	device, err := a.store.FindByIdentifier(r.Context(), deviceID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}

	digest := sha256.Sum256([]byte(payload.Pin))
	pinHash := hex.EncodeToString(digest[:])

	if err := a.store.SetEmergencyPin(r.Context(), device.ID, pinHash, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}

	// Best effort: an offline device picks the PIN up out of band later.
	delivered := a.gateway.Dispatcher().SetEmergencyPin(r.Context(), device.ID, pinHash) == nil
	writeJSON(w, http.StatusOK, map[string]any{"configured": true, "delivered": delivered})
}

// getEmergencyPin reports whether an emergency PIN is configured.
func (a *API) getEmergencyPin(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	device, err := a.store.FindByIdentifier(r.Context(), deviceID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}

	pin, err := a.store.GetEmergencyPin(r.Context(), device.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"configured": false, "configuredAt": nil})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configured":   true,
		"configuredAt": pin.ConfiguredAt.Format(time.RFC3339),
	})
}

// liveStatus returns canonical IDs of devices with both an open connection
// and online=true in the directory. Dashboards poll this for Live badges.
func (a *API) liveStatus(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")

	open := map[string]struct{}{}
	for _, identifier := range a.gateway.Registry().ConnectedIdentifiers() {
		open[identifier] = struct{}{}
	}

	connected := []string{}
	if len(open) > 0 {
		devices, err := a.store.ListDevices(r.Context(), companyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
			return
		}
		for _, device := range devices {
			if _, ok := open[device.Identifier]; ok && device.Online {
				connected = append(connected, device.ID)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": connected})
}

// listDevices returns the directory listing, optionally scoped to a company.
func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.store.ListDevices(r.Context(), r.URL.Query().Get("companyId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": devices})
}

// serveScreenshot serves a stored frame with caching disabled: the same
// device keeps producing new frames and dashboards must not show stale ones.
func (a *API) serveScreenshot(w http.ResponseWriter, r *http.Request) {
	path, err := a.blobs.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid_path", "Invalid screenshot path")
		return
	}
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.ServeFile(w, r, path)
}

// writeDispatchError maps dispatcher failures to HTTP responses; reports
// whether an error was written.
func (a *API) writeDispatchError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gateway.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
	case errors.Is(err, gateway.ErrDeviceOffline):
		writeError(w, http.StatusConflict, "device_offline", "Device not connected")
	default:
		a.logger.Error("command dispatch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "dispatch_failed", "Failed to send command")
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
