package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/orionguard/gateway/internal/model"
)

// FindActiveSession returns the most recent ACTIVE session for a device,
// ErrNotFound when the device has none.
func (r *Repository) FindActiveSession(ctx context.Context, deviceID string) (model.Session, error) {
	var (
		session    model.Session
		isSystem   int
		loginTime  string
		logoutTime sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, device_id, status, is_system, login_time, logout_time
		FROM sessions
		WHERE device_id = ? AND status = ?
		ORDER BY login_time DESC
		LIMIT 1`,
		deviceID, model.SessionStatusActive,
	).Scan(&session.ID, &session.CompanyID, &session.DeviceID, &session.Status, &isSystem, &loginTime, &logoutTime)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	session.IsSystem = isSystem != 0
	if ts, err := time.Parse(time.RFC3339Nano, loginTime); err == nil {
		session.LoginTime = ts.UTC()
	}
	session.LogoutTime = toTimePtr(logoutTime)
	return session, nil
}

// CreateSystemSession opens a gateway-attributed ACTIVE session so captures
// arriving outside a user session still have a home.
func (r *Repository) CreateSystemSession(ctx context.Context, companyID, deviceID string) (model.Session, error) {
	session := model.Session{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		DeviceID:  deviceID,
		Status:    model.SessionStatusActive,
		IsSystem:  true,
		LoginTime: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, company_id, device_id, status, is_system, login_time)
		VALUES (?, ?, ?, ?, 1, ?)`,
		session.ID, session.CompanyID, session.DeviceID, session.Status, formatTime(session.LoginTime),
	)
	if err != nil {
		return model.Session{}, err
	}
	return session, nil
}

// CreateCapture records a stored screenshot against a session.
func (r *Repository) CreateCapture(ctx context.Context, sessionID, filePath string, capturedAt time.Time) (model.Capture, error) {
	capture := model.Capture{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		FilePath:   filePath,
		CapturedAt: capturedAt.UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO screenshots (id, session_id, file_path, captured_at)
		VALUES (?, ?, ?, ?)`,
		capture.ID, capture.SessionID, capture.FilePath, formatTime(capture.CapturedAt),
	)
	if err != nil {
		return model.Capture{}, err
	}
	return capture, nil
}

// ListCaptures returns capture records for a session, newest first.
func (r *Repository) ListCaptures(ctx context.Context, sessionID string) ([]model.Capture, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, file_path, captured_at
		FROM screenshots
		WHERE session_id = ?
		ORDER BY captured_at DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Capture{}
	for rows.Next() {
		var (
			capture    model.Capture
			capturedAt string
		)
		if err := rows.Scan(&capture.ID, &capture.SessionID, &capture.FilePath, &capturedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, capturedAt); err == nil {
			capture.CapturedAt = ts.UTC()
		}
		result = append(result, capture)
	}
	return result, rows.Err()
}
