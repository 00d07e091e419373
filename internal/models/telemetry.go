package models

import "time"

// TelemetryReading is one stored sensor report. Append-only; duplicates
// (same device, same device-supplied timestamp) are ignored on insert so
// firmware-side retries are safe.
type TelemetryReading struct {
	ID              int64     `json:"id"`
	DeviceID        string    `json:"device_id"`
	TankType        string    `json:"tank_type"` // sump_tank | top_tank
	LevelPercentage float64   `json:"level_percentage"`
	LevelLiters     float64   `json:"level_liters"`
	SensorHealth    string    `json:"sensor_health"`
	MotorRunning    *bool     `json:"motor_running,omitempty"`
	ManualOverride  *bool     `json:"manual_override,omitempty"`
	AutoModeEnabled *bool     `json:"auto_mode_enabled,omitempty"`
	FloatSwitch     *bool     `json:"float_switch,omitempty"`
	SignalStrength  *int      `json:"signal_strength,omitempty"`
	ProtocolVersion int       `json:"protocol_version"`
	ReadingAt       time.Time `json:"reading_at"`  // device-supplied, UTC
	ReceivedAt      time.Time `json:"received_at"` // server clock
}
