package service

import (
	"context"
	"time"

	"tankguard/internal/config"
	"tankguard/internal/logger"
	"tankguard/internal/models"
	"tankguard/internal/repository"
)

// Authorization exposes operator account auth for the admin API.
type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// DeviceAuth authenticates signed device requests.
type DeviceAuth interface {
	Verify(ctx context.Context, deviceID, apiKey string, rawBody []byte, claimedTimestamp, claimedSignature string) (*models.Device, error)
	VerifyAPIKey(ctx context.Context, deviceID, apiKey string) (*models.Device, error)
}

// ProtocolGate rejects firmware outside the accepted version window.
type ProtocolGate interface {
	CheckVersion(version *int) error
	Window() (min, max int)
}

// Ingestion validates, persists, and forwards telemetry; it also records
// device-reported alerts and exposes the alert table to operators.
type Ingestion interface {
	Ingest(ctx context.Context, deviceID string, in ReadingInput) (*models.TelemetryReading, error)
	RecordAlert(ctx context.Context, deviceID string, in AlertInput) (*models.SystemAlert, error)
	ListAlerts(ctx context.Context, limit int) ([]models.SystemAlert, error)
}

// MotorControl is the safety state machine front: one instance per sump
// device, all transitions serialized per device.
type MotorControl interface {
	OnReading(ctx context.Context, sumpID string, r models.TelemetryReading) error
	SyncMotorRunning(ctx context.Context, sumpID string, running bool, reportedAt time.Time) error
	ManualStart(ctx context.Context, sumpID string) error
	ManualStop(ctx context.Context, sumpID string) error
	ResumeAuto(ctx context.Context, sumpID string) error
	GetState(ctx context.Context, sumpID string) (models.MotorState, error)
}

// CommandQueue is the durable per-device queue with TTL expiry.
// Run is the background sweep; stop it via context cancellation in main().
type CommandQueue interface {
	Enqueue(ctx context.Context, deviceID, cmdType string, payload any, ttl time.Duration) (*models.DeviceCommand, error)
	Poll(ctx context.Context, deviceID string) ([]models.DeviceCommand, error)
	Pending(ctx context.Context, deviceID string) ([]models.DeviceCommand, error)
	Acknowledge(ctx context.Context, commandID string) (AckResult, error)
	Run(ctx context.Context, tick time.Duration)
}

// EventLog exposes the append-only motor audit trail with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.MotorEvent, error)
}

// DeviceAdmin handles provisioning, pairing, deactivation.
type DeviceAdmin interface {
	Provision(ctx context.Context, p ProvisionParams) (*models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	Pair(ctx context.Context, sumpID, topID string) error
	Deactivate(ctx context.Context, deviceID string) error
}

// Service aggregates all sub-services for the HTTP layer.
type Service struct {
	Auth       Authorization
	DeviceAuth DeviceAuth
	Protocol   ProtocolGate
	Ingestion  Ingestion
	Motor      MotorControl
	Commands   CommandQueue
	EventLog   EventLog
	Devices    DeviceAdmin
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, log *logger.Logger, cfg *config.Config) *Service {
	queue := NewCommandQueueService(repos.Commands, log, cfg.CommandTTL)
	motor := NewMotorSafetyService(repos, queue, log, MotorThresholds{
		AutoStartLevel: cfg.AutoStartLevel,
		AutoStopLevel:  cfg.AutoStopLevel,
		SumpLowLevel:   cfg.SumpLowLevel,
		MaxRuntime:     cfg.MaxRuntime,
		MinOffTime:     cfg.MinOffTime,
	})

	return &Service{
		Auth:       NewAuthService(repos.Auth, cfg.JWTSigningKey),
		DeviceAuth: NewDeviceAuthService(repos.Devices, log, cfg.HMACRequired, cfg.DriftTolerance),
		Protocol:   NewProtocolGateService(cfg.ProtocolMin, cfg.ProtocolMax),
		Ingestion:  NewIngestionService(repos, motor, log, cfg.AlertLowLevel, cfg.AlertHighLevel),
		Motor:      motor,
		Commands:   queue,
		EventLog:   NewEventLogService(repos.MotorEvents),
		Devices:    NewDeviceAdminService(repos.Devices),
	}
}
