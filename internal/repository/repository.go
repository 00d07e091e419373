package repository

import (
	"context"
	"database/sql"
	"time"

	"tankguard/internal/models"
)

// Devices is the credential store plus the explicit pairing table.
type Devices interface {
	Create(ctx context.Context, d models.Device) error
	GetByID(ctx context.Context, id string) (*models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	UpdateLastSeen(ctx context.Context, id string, t time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	Pair(ctx context.Context, sumpID, topID string) error
	PairedTop(ctx context.Context, sumpID string) (string, error)
	SumpForTop(ctx context.Context, topID string) (string, error)
}

// Telemetry is the append-only reading store. Insert reports whether a row
// was actually written; duplicates of (device, reading timestamp) are not.
type Telemetry interface {
	Insert(ctx context.Context, r models.TelemetryReading) (int64, bool, error)
	LatestForDevice(ctx context.Context, deviceID string) (*models.TelemetryReading, error)
}

// EventFilter narrows motor event listings.
type EventFilter struct {
	DeviceID string
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string
}

// MotorEvents is the append-only audit trail.
type MotorEvents interface {
	Append(ctx context.Context, e models.MotorEvent) error
	List(ctx context.Context, f EventFilter) ([]models.MotorEvent, error)
	LastByType(ctx context.Context, deviceID, eventType string) (*models.MotorEvent, error)
}

// Commands is the durable per-device command queue.
type Commands interface {
	Insert(ctx context.Context, c models.DeviceCommand) error
	Get(ctx context.Context, id string) (*models.DeviceCommand, error)
	PendingForDevice(ctx context.Context, deviceID string, now time.Time) ([]models.DeviceCommand, error)
	IncrementRetries(ctx context.Context, ids []string) error
	MarkAcknowledged(ctx context.Context, id string) error
	DeleteFinished(ctx context.Context, now time.Time) (int64, error)
}

// Alerts persists emitted system alerts.
type Alerts interface {
	Append(ctx context.Context, a models.SystemAlert) error
	ListRecent(ctx context.Context, limit int) ([]models.SystemAlert, error)
}

// Authorization stores operator accounts.
type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type Repository struct {
	Devices     Devices
	Telemetry   Telemetry
	MotorEvents MotorEvents
	Commands    Commands
	Alerts      Alerts
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Devices:     NewDeviceSQLite(db),
		Telemetry:   NewTelemetrySQLite(db),
		MotorEvents: NewMotorEventSQLite(db),
		Commands:    NewCommandSQLite(db),
		Alerts:      NewAlertSQLite(db),
		Auth:        NewUserRepository(db),
	}
}
