package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tankguard/internal/logger"
	"tankguard/internal/models"
	"tankguard/internal/repository"
)

const defaultSensorHealth = "unknown"

// IngestionService validates and normalizes device payloads, persists them,
// and forwards each stored reading to the safety machine of the sump device
// it concerns.
type IngestionService struct {
	telemetry repository.Telemetry
	devices   repository.Devices
	alerts    repository.Alerts
	motor     MotorControl
	log       *logger.Logger

	alertLow  float64
	alertHigh float64
	now       func() time.Time
}

func NewIngestionService(repos *repository.Repository, motor MotorControl, log *logger.Logger, alertLow, alertHigh float64) *IngestionService {
	return &IngestionService{
		telemetry: repos.Telemetry,
		devices:   repos.Devices,
		alerts:    repos.Alerts,
		motor:     motor,
		log:       log,
		alertLow:  alertLow,
		alertHigh: alertHigh,
		now:       time.Now,
	}
}

var _ Ingestion = (*IngestionService)(nil)

func validateReading(in ReadingInput) error {
	if !models.KnownTankType(in.TankType) {
		return &ValidationError{Field: "tank_type", Reason: fmt.Sprintf("unknown value %q", in.TankType)}
	}
	if in.LevelPercentage < 0 || in.LevelPercentage > 100 {
		return &ValidationError{Field: "level_percentage", Reason: "must be within [0, 100]"}
	}
	if in.LevelLiters < 0 {
		return &ValidationError{Field: "level_liters", Reason: "must be >= 0"}
	}
	if in.Timestamp <= 0 {
		return &ValidationError{Field: "timestamp", Reason: "must be UNIX seconds > 0"}
	}
	return nil
}

// normalize applies explicit defaults for optional fields at the boundary
// so downstream code never null-checks.
func normalize(deviceID string, in ReadingInput, receivedAt time.Time) models.TelemetryReading {
	health := strings.TrimSpace(in.SensorHealth)
	if health == "" {
		health = defaultSensorHealth
	}
	return models.TelemetryReading{
		DeviceID:        deviceID,
		TankType:        in.TankType,
		LevelPercentage: in.LevelPercentage,
		LevelLiters:     in.LevelLiters,
		SensorHealth:    health,
		MotorRunning:    in.MotorRunning,
		ManualOverride:  in.ManualOverride,
		AutoModeEnabled: in.AutoModeEnabled,
		FloatSwitch:     in.FloatSwitch,
		SignalStrength:  in.SignalStrength,
		ProtocolVersion: in.ProtocolVersion,
		ReadingAt:       time.Unix(in.Timestamp, 0).UTC(),
		ReceivedAt:      receivedAt,
	}
}

// Ingest stores a reading and drives the safety machine. Re-submitting the
// same (device, timestamp) reading is a harmless no-op: the stored row is
// returned and nothing is forwarded twice.
func (s *IngestionService) Ingest(ctx context.Context, deviceID string, in ReadingInput) (*models.TelemetryReading, error) {
	if err := validateReading(in); err != nil {
		return nil, err
	}

	reading := normalize(deviceID, in, s.now().UTC())

	id, inserted, err := s.telemetry.Insert(ctx, reading)
	if err != nil {
		return nil, fmt.Errorf("persist reading: %w", err)
	}
	reading.ID = id
	if !inserted {
		s.log.Debugw("duplicate_reading_ignored", "device_id", deviceID, "reading_at", reading.ReadingAt)
		return &reading, nil
	}

	s.maybeAlert(ctx, reading)

	sumpID, err := s.sumpFor(ctx, reading)
	if err != nil {
		return nil, err
	}
	if sumpID == "" {
		// Unpaired top tank: the reading is stored but drives no decision.
		s.log.Debugw("reading_without_paired_sump", "device_id", deviceID)
		return &reading, nil
	}
	if err := s.motor.OnReading(ctx, sumpID, reading); err != nil {
		return nil, fmt.Errorf("motor evaluation: %w", err)
	}
	return &reading, nil
}

// sumpFor resolves which pump device a reading concerns via the explicit
// pairing table.
func (s *IngestionService) sumpFor(ctx context.Context, r models.TelemetryReading) (string, error) {
	if r.TankType == models.TankSump {
		return r.DeviceID, nil
	}
	sumpID, err := s.devices.SumpForTop(ctx, r.DeviceID)
	if err != nil {
		return "", fmt.Errorf("resolve pairing: %w", err)
	}
	return sumpID, nil
}

// maybeAlert emits a SystemAlert when a level crosses a critical threshold.
// Emission is persistence plus a log line; delivery is out of scope.
func (s *IngestionService) maybeAlert(ctx context.Context, r models.TelemetryReading) {
	var alert *models.SystemAlert
	switch {
	case r.LevelPercentage < s.alertLow:
		alert = &models.SystemAlert{
			DeviceID:  r.DeviceID,
			AlertType: "level_critical_low",
			Severity:  models.SeverityCritical,
			Message:   fmt.Sprintf("%s level %.1f%% below %.1f%%", r.TankType, r.LevelPercentage, s.alertLow),
		}
	case r.LevelPercentage > s.alertHigh:
		alert = &models.SystemAlert{
			DeviceID:  r.DeviceID,
			AlertType: "level_critical_high",
			Severity:  models.SeverityWarning,
			Message:   fmt.Sprintf("%s level %.1f%% above %.1f%%", r.TankType, r.LevelPercentage, s.alertHigh),
		}
	}
	if alert == nil {
		return
	}
	alert.CreatedAt = s.now().UTC()
	if err := s.alerts.Append(ctx, *alert); err != nil {
		s.log.Errorw("alert_persist_failed", "device_id", r.DeviceID, "err", err)
		return
	}
	s.log.Warnw("system_alert", "device_id", alert.DeviceID,
		"alert_type", alert.AlertType, "severity", alert.Severity, "message", alert.Message)
}

// RecordAlert stores a device-reported system alert.
func (s *IngestionService) RecordAlert(ctx context.Context, deviceID string, in AlertInput) (*models.SystemAlert, error) {
	if strings.TrimSpace(in.AlertType) == "" {
		return nil, &ValidationError{Field: "alert_type", Reason: "required"}
	}
	severity := strings.TrimSpace(in.Severity)
	switch severity {
	case "":
		severity = models.SeverityInfo
	case models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
	default:
		return nil, &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown value %q", severity)}
	}

	alert := models.SystemAlert{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		AlertType: in.AlertType,
		Severity:  severity,
		Message:   in.Message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.alerts.Append(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}
	s.log.Warnw("device_alert", "device_id", deviceID, "alert_type", in.AlertType, "severity", severity)
	return &alert, nil
}

// ListAlerts returns the most recent system alerts, newest first.
func (s *IngestionService) ListAlerts(ctx context.Context, limit int) ([]models.SystemAlert, error) {
	alerts, err := s.alerts.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
