package repository

import (
	"testing"
	"time"

	"tankguard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestDeviceGetByID_NotFoundIsNilNil(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewDeviceSQLite(db)

	mock.ExpectQuery("SELECT id, name, tank_type").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	d, err := repo.GetByID(testCtx(t), "ghost")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if d != nil {
		t.Fatalf("expected nil for missing device, got %+v", d)
	}
}

func TestDeviceGetByID_ScansRow(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewDeviceSQLite(db)

	lastSeen := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "tank_type", "api_key", "hmac_secret", "is_active", "last_seen"}).
		AddRow("sump-1", "basement pump", models.TankSump, "key", "secret", true, lastSeen)

	mock.ExpectQuery("SELECT id, name, tank_type").
		WithArgs("sump-1").
		WillReturnRows(rows)

	d, err := repo.GetByID(testCtx(t), "sump-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if d.ID != "sump-1" || d.TankType != models.TankSump || d.HMACSecret != "secret" || !d.IsActive {
		t.Fatalf("unexpected device: %+v", d)
	}
	if !d.LastSeen.Equal(lastSeen) {
		t.Fatalf("last_seen wrong: %v", d.LastSeen)
	}
}

func TestDeviceSetActive_MissingDeviceErrors(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewDeviceSQLite(db)

	mock.ExpectExec("UPDATE devices SET is_active").
		WithArgs(false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetActive(testCtx(t), "ghost", false); err == nil {
		t.Fatalf("expected error for unknown device")
	}
}

func TestDevicePairing_LookupBothDirections(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewDeviceSQLite(db)

	mock.ExpectQuery("SELECT top_device_id FROM device_pairings").
		WithArgs("sump-1").
		WillReturnRows(sqlmock.NewRows([]string{"top_device_id"}).AddRow("top-1"))
	mock.ExpectQuery("SELECT sump_device_id FROM device_pairings").
		WithArgs("top-1").
		WillReturnRows(sqlmock.NewRows([]string{"sump_device_id"}).AddRow("sump-1"))
	mock.ExpectQuery("SELECT sump_device_id FROM device_pairings").
		WithArgs("top-solo").
		WillReturnRows(sqlmock.NewRows([]string{"sump_device_id"}))

	top, err := repo.PairedTop(testCtx(t), "sump-1")
	if err != nil || top != "top-1" {
		t.Fatalf("PairedTop = (%q, %v)", top, err)
	}
	sump, err := repo.SumpForTop(testCtx(t), "top-1")
	if err != nil || sump != "sump-1" {
		t.Fatalf("SumpForTop = (%q, %v)", sump, err)
	}
	none, err := repo.SumpForTop(testCtx(t), "top-solo")
	if err != nil || none != "" {
		t.Fatalf("unpaired top must yield empty id, got (%q, %v)", none, err)
	}
}

func TestDevicePair_UpsertsPairing(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewDeviceSQLite(db)

	mock.ExpectExec("INSERT INTO device_pairings").
		WithArgs("sump-1", "top-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Pair(testCtx(t), "sump-1", "top-1"); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
