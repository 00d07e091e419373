package repository

import (
	"testing"
	"time"

	"tankguard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMotorEventAppend_FillsDefaults(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewMotorEventSQLite(db)

	// Generated id and timestamp: match on the fixed columns only.
	mock.ExpectExec("INSERT INTO motor_events").
		WithArgs(sqlmock.AnyArg(), "sump-1", models.EventStop, models.TriggerSafety, 1200, "sump below floor", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := 1200
	err = repo.Append(testCtx(t), models.MotorEvent{
		DeviceID:        "sump-1",
		EventType:       models.EventStop,
		Trigger:         models.TriggerSafety,
		DurationSeconds: &d,
		Reason:          "sump below floor",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestMotorEventList_BuildsConditions(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewMotorEventSQLite(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	occurred := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "device_id", "event_type", "trigger_source", "duration_seconds", "reason", "occurred_at"}).
		AddRow("e1", "sump-1", models.EventStart, models.TriggerAuto, nil, "top below threshold", occurred)

	mock.ExpectQuery("SELECT id, device_id, event_type, trigger_source, duration_seconds, reason, occurred_at FROM motor_events WHERE device_id = \\? AND occurred_at >= \\? AND occurred_at <= \\? AND event_type = \\?").
		WithArgs("sump-1", from, to, models.EventStart).
		WillReturnRows(rows)

	events, err := repo.List(testCtx(t), EventFilter{
		DeviceID: "sump-1",
		From:     from,
		To:       to,
		Type:     models.EventStart,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].DurationSeconds != nil {
		t.Fatalf("null duration must stay nil")
	}
}

func TestMotorEventLastByType_NoRowsIsNilNil(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewMotorEventSQLite(db)

	mock.ExpectQuery("SELECT id, device_id, event_type").
		WithArgs("sump-1", models.EventStart).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ev, err := repo.LastByType(testCtx(t), "sump-1", models.EventStart)
	if err != nil {
		t.Fatalf("LastByType: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected nil when no events, got %+v", ev)
	}
}
