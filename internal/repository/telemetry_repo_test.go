package repository

import (
	"testing"
	"time"

	"tankguard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTelemetryInsert_StoresUnixSecondsAndNullables(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewTelemetrySQLite(db)

	readingAt := time.Date(2026, 3, 14, 11, 59, 58, 0, time.UTC)
	receivedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	running := true

	mock.ExpectExec("INSERT INTO telemetry_readings").
		WithArgs("sump-1", models.TankSump, 42.5, 120.0, "good",
			running, nil, nil, nil,
			nil, 1, readingAt.Unix(), receivedAt,
		).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, inserted, err := repo.Insert(testCtx(t), models.TelemetryReading{
		DeviceID:        "sump-1",
		TankType:        models.TankSump,
		LevelPercentage: 42.5,
		LevelLiters:     120,
		SensorHealth:    "good",
		MotorRunning:    &running,
		ProtocolVersion: 1,
		ReadingAt:       readingAt,
		ReceivedAt:      receivedAt,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !inserted || id != 7 {
		t.Fatalf("expected (7, true), got (%d, %v)", id, inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestTelemetryInsert_DuplicateReportsNotInserted(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewTelemetrySQLite(db)

	// ON CONFLICT DO NOTHING: zero rows affected.
	mock.ExpectExec("INSERT INTO telemetry_readings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, inserted, err := repo.Insert(testCtx(t), models.TelemetryReading{
		DeviceID:  "sump-1",
		TankType:  models.TankSump,
		ReadingAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate must report inserted=false")
	}
}

func TestTelemetryLatestForDevice_ScansNullables(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewTelemetrySQLite(db)

	readingAt := time.Date(2026, 3, 14, 11, 59, 58, 0, time.UTC)
	receivedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "device_id", "tank_type", "level_percentage", "level_liters", "sensor_health",
		"motor_running", "manual_override", "auto_mode_enabled", "float_switch",
		"signal_strength", "protocol_version", "reading_at", "received_at",
	}).AddRow(3, "sump-1", models.TankSump, 42.5, 120.0, "good",
		true, nil, nil, false,
		-61, 1, readingAt.Unix(), receivedAt)

	mock.ExpectQuery("SELECT id, device_id, tank_type").
		WithArgs("sump-1").
		WillReturnRows(rows)

	r, err := repo.LatestForDevice(testCtx(t), "sump-1")
	if err != nil {
		t.Fatalf("LatestForDevice: %v", err)
	}
	if r.ID != 3 || r.LevelPercentage != 42.5 {
		t.Fatalf("unexpected reading: %+v", r)
	}
	if r.MotorRunning == nil || !*r.MotorRunning {
		t.Fatalf("motor_running lost: %+v", r)
	}
	if r.ManualOverride != nil {
		t.Fatalf("null manual_override must stay nil")
	}
	if r.FloatSwitch == nil || *r.FloatSwitch {
		t.Fatalf("float_switch lost: %+v", r)
	}
	if r.SignalStrength == nil || *r.SignalStrength != -61 {
		t.Fatalf("signal_strength lost: %+v", r)
	}
	if !r.ReadingAt.Equal(readingAt) {
		t.Fatalf("reading_at not decoded from unix seconds: %v", r.ReadingAt)
	}
}

func TestTelemetryLatestForDevice_NoRowsIsNilNil(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewTelemetrySQLite(db)

	mock.ExpectQuery("SELECT id, device_id, tank_type").
		WithArgs("silent").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r, err := repo.LatestForDevice(testCtx(t), "silent")
	if err != nil {
		t.Fatalf("LatestForDevice: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil for never-reported device, got %+v", r)
	}
}
