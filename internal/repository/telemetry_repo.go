package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tankguard/internal/models"
)

type TelemetrySQLite struct {
	db *sql.DB
}

func NewTelemetrySQLite(db *sql.DB) *TelemetrySQLite { return &TelemetrySQLite{db: db} }

var _ Telemetry = (*TelemetrySQLite)(nil)

const (
	// reading_at is stored as UNIX seconds exactly as the device supplied it;
	// the UNIQUE(device_id, reading_at) index makes retried submissions no-ops.
	insertReadingSQL = `
		INSERT INTO telemetry_readings
			(device_id, tank_type, level_percentage, level_liters, sensor_health,
			 motor_running, manual_override, auto_mode_enabled, float_switch,
			 signal_strength, protocol_version, reading_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, reading_at) DO NOTHING
	`

	selectLatestReadingSQL = `
		SELECT id, device_id, tank_type, level_percentage, level_liters, sensor_health,
		       motor_running, manual_override, auto_mode_enabled, float_switch,
		       signal_strength, protocol_version, reading_at, received_at
		FROM telemetry_readings
		WHERE device_id = ?
		ORDER BY reading_at DESC
		LIMIT 1
	`
)

// Insert appends a reading. The second return value is false when the same
// (device, timestamp) pair was already stored, in which case nothing changed.
func (r *TelemetrySQLite) Insert(ctx context.Context, t models.TelemetryReading) (int64, bool, error) {
	receivedAt := t.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, insertReadingSQL,
		t.DeviceID,
		t.TankType,
		t.LevelPercentage,
		t.LevelLiters,
		t.SensorHealth,
		nullableBool(t.MotorRunning),
		nullableBool(t.ManualOverride),
		nullableBool(t.AutoModeEnabled),
		nullableBool(t.FloatSwitch),
		nullableInt(t.SignalStrength),
		t.ProtocolVersion,
		t.ReadingAt.UTC().Unix(),
		receivedAt.UTC(),
	)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil // duplicate submission
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// LatestForDevice returns the newest reading by device timestamp, or
// (nil, nil) when the device has never reported.
func (r *TelemetrySQLite) LatestForDevice(ctx context.Context, deviceID string) (*models.TelemetryReading, error) {
	row := r.db.QueryRowContext(ctx, selectLatestReadingSQL, deviceID)

	var t models.TelemetryReading
	var motorRunning, manualOverride, autoMode, floatSwitch sql.NullBool
	var signal sql.NullInt64
	var readingUnix int64
	err := row.Scan(
		&t.ID, &t.DeviceID, &t.TankType, &t.LevelPercentage, &t.LevelLiters, &t.SensorHealth,
		&motorRunning, &manualOverride, &autoMode, &floatSwitch,
		&signal, &t.ProtocolVersion, &readingUnix, &t.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	t.MotorRunning = boolPtr(motorRunning)
	t.ManualOverride = boolPtr(manualOverride)
	t.AutoModeEnabled = boolPtr(autoMode)
	t.FloatSwitch = boolPtr(floatSwitch)
	t.SignalStrength = intPtr(signal)
	t.ReadingAt = time.Unix(readingUnix, 0).UTC()
	t.ReceivedAt = t.ReceivedAt.UTC()
	return &t, nil
}

func nullableBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
