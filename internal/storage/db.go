package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Repository is the sqlite-backed store for devices, sessions, captures,
// and emergency PIN config. It doubles as the gateway's device directory.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL UNIQUE,
			company_id TEXT NOT NULL,
			name TEXT,
			online INTEGER NOT NULL DEFAULT 0,
			last_seen_at TEXT,
			last_heartbeat_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			status TEXT NOT NULL,
			is_system INTEGER NOT NULL DEFAULT 0,
			login_time TEXT NOT NULL,
			logout_time TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS screenshots (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			file_path TEXT NOT NULL,
			captured_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS emergency_pins (
			device_id TEXT PRIMARY KEY,
			pin_hash TEXT NOT NULL,
			configured_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_devices_company ON devices(company_id);`,
		`CREATE INDEX IF NOT EXISTS idx_devices_online ON devices(online);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_device_status ON sessions(device_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_screenshots_session ON screenshots(session_id);`,
	}
	for _, stmt := range indexes {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func toTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// timeLayout pads nanoseconds to fixed width so stored timestamps order
// correctly as text. RFC3339Nano drops trailing zeros and breaks that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(v time.Time) string {
	return v.UTC().Format(timeLayout)
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func fromStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
