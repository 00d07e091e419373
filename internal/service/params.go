package service

import "time"

// ReadingInput is the schema-validated telemetry payload after JSON binding.
// Optional fields stay nil until Ingest applies explicit defaults.
type ReadingInput struct {
	TankType        string
	LevelPercentage float64
	LevelLiters     float64
	SensorHealth    string
	MotorRunning    *bool
	ManualOverride  *bool
	AutoModeEnabled *bool
	FloatSwitch     *bool
	SignalStrength  *int
	ProtocolVersion int
	Timestamp       int64 // device-supplied UNIX seconds UTC
}

// AlertInput is a device-reported system alert.
type AlertInput struct {
	AlertType string
	Severity  string
	Message   string
}

// LogFilter narrows the motor event audit listing.
type LogFilter struct {
	DeviceID string
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string
}

// ProvisionParams describes a device to create.
type ProvisionParams struct {
	ID       string
	Name     string
	TankType string
}

// AckResult is the outcome of acknowledging a command.
type AckResult string

const (
	AckOK      AckResult = "acknowledged"
	AckAlready AckResult = "already_acknowledged"
	AckExpired AckResult = "expired"
)
