package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/orionguard/gateway/internal/model"
)

var ErrNotFound = errors.New("not found")

const deviceColumns = `id, identifier, company_id, name, online, last_seen_at, last_heartbeat_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (model.Device, error) {
	var (
		device                  model.Device
		name                    sql.NullString
		lastSeen, lastHeartbeat sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(
		&device.ID, &device.Identifier, &device.CompanyID, &name,
		&device.Online, &lastSeen, &lastHeartbeat, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, ErrNotFound
	}
	if err != nil {
		return model.Device{}, err
	}
	device.Name = strPtr(name)
	device.LastSeenAt = toTimePtr(lastSeen)
	device.LastHeartbeatAt = toTimePtr(lastHeartbeat)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		device.CreatedAt = ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		device.UpdatedAt = ts.UTC()
	}
	return device, nil
}

// FindByIdentifierAndCompany resolves a registration request. The client may
// report either the provisioning identifier or the canonical record ID; the
// match is always scoped to the claimed company.
func (r *Repository) FindByIdentifierAndCompany(ctx context.Context, identifier, companyID string) (model.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE (identifier = ? OR id = ?) AND company_id = ?`,
		identifier, identifier, companyID)
	return scanDevice(row)
}

// FindByIdentifier resolves a device by provisioning identifier or canonical
// record ID, without tenant scoping.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (model.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE identifier = ? OR id = ?`,
		identifier, identifier)
	return scanDevice(row)
}

// SetOnline flips the persisted presence flag for a device.
func (r *Repository) SetOnline(ctx context.Context, deviceID string, online bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET online = ?, updated_at = ? WHERE id = ?`,
		online, formatTime(time.Now()), deviceID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchHeartbeat stamps both last_heartbeat_at and last_seen_at.
func (r *Repository) TouchHeartbeat(ctx context.Context, deviceID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_heartbeat_at = ?, last_seen_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), formatTime(at), deviceID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaleOnline returns devices still flagged online whose last heartbeat
// is missing or older than cutoff. The cutoff comparison happens in Go so
// rows with a NULL heartbeat are treated as stale without SQL gymnastics.
func (r *Repository) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+` FROM devices WHERE online = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []model.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		if device.LastHeartbeatAt == nil || device.LastHeartbeatAt.Before(cutoff) {
			stale = append(stale, device)
		}
	}
	return stale, rows.Err()
}

// ListDevices returns all devices, optionally filtered by company.
func (r *Repository) ListDevices(ctx context.Context, companyID string) ([]model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices`
	args := []any{}
	if companyID != "" {
		query += ` WHERE company_id = ?`
		args = append(args, companyID)
	}
	query += ` ORDER BY identifier`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	return result, rows.Err()
}

// UpsertDevice provisions a device record or updates its company and name.
// A missing ID is assigned on first insert.
func (r *Repository) UpsertDevice(ctx context.Context, device model.Device) (model.Device, error) {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, identifier, company_id, name, online, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			company_id = excluded.company_id,
			name = COALESCE(excluded.name, devices.name),
			updated_at = excluded.updated_at`,
		device.ID, device.Identifier, device.CompanyID, fromStringPtr(device.Name), now, now,
	)
	if err != nil {
		return model.Device{}, err
	}
	return r.FindByIdentifier(ctx, device.Identifier)
}

// SetEmergencyPin stores the hashed emergency unlock PIN for a device.
func (r *Repository) SetEmergencyPin(ctx context.Context, deviceID, pinHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emergency_pins (device_id, pin_hash, configured_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			pin_hash = excluded.pin_hash,
			configured_at = excluded.configured_at`,
		deviceID, pinHash, formatTime(at),
	)
	return err
}

// GetEmergencyPin reports the PIN config for a device, ErrNotFound when none
// has been set.
func (r *Repository) GetEmergencyPin(ctx context.Context, deviceID string) (model.EmergencyPin, error) {
	var (
		pin          model.EmergencyPin
		configuredAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT device_id, pin_hash, configured_at FROM emergency_pins WHERE device_id = ?`,
		deviceID).Scan(&pin.DeviceID, &pin.PinHash, &configuredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EmergencyPin{}, ErrNotFound
	}
	if err != nil {
		return model.EmergencyPin{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, configuredAt); err == nil {
		pin.ConfiguredAt = ts.UTC()
	}
	return pin, nil
}
