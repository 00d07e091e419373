package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates the SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite tolerates exactly one writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const schemaDevices = `
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    tank_type TEXT NOT NULL,
    api_key TEXT UNIQUE NOT NULL,
    hmac_secret TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    last_seen TIMESTAMP
);
`

const schemaDevicePairings = `
CREATE TABLE IF NOT EXISTS device_pairings (
    sump_device_id TEXT PRIMARY KEY REFERENCES devices(id),
    top_device_id TEXT NOT NULL REFERENCES devices(id)
);
`

const schemaTelemetryReadings = `
CREATE TABLE IF NOT EXISTS telemetry_readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id TEXT NOT NULL REFERENCES devices(id),
    tank_type TEXT NOT NULL,
    level_percentage REAL NOT NULL,
    level_liters REAL NOT NULL,
    sensor_health TEXT NOT NULL,
    motor_running BOOLEAN,
    manual_override BOOLEAN,
    auto_mode_enabled BOOLEAN,
    float_switch BOOLEAN,
    signal_strength INTEGER,
    protocol_version INTEGER NOT NULL,
    reading_at INTEGER NOT NULL,
    received_at TIMESTAMP NOT NULL,
    UNIQUE(device_id, reading_at)
);
`

const schemaMotorEvents = `
CREATE TABLE IF NOT EXISTS motor_events (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    trigger_source TEXT NOT NULL,
    duration_seconds INTEGER,
    reason TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP NOT NULL
);
`

const schemaDeviceCommands = `
CREATE TABLE IF NOT EXISTS device_commands (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL REFERENCES devices(id),
    type TEXT NOT NULL,
    payload TEXT,
    created_at TIMESTAMP NOT NULL,
    ttl TIMESTAMP NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    acknowledged BOOLEAN NOT NULL DEFAULT 0
);
`

const schemaSystemAlerts = `
CREATE TABLE IF NOT EXISTS system_alerts (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaDevices,
		schemaDevicePairings,
		schemaTelemetryReadings,
		schemaMotorEvents,
		schemaDeviceCommands,
		schemaSystemAlerts,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
