package models

import "time"

// Motor event types.
const (
	EventStart         = "start"
	EventStop          = "stop"
	EventStartRejected = "start_rejected"
	EventResumeAuto    = "resume_auto"
)

// Trigger sources for motor events.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
	TriggerSafety = "safety"
)

// Safety machine states.
const (
	StateIdle           = "idle"
	StateRunning        = "running"
	StateManualOverride = "manual_override"
	StateSafetyLockout  = "safety_lockout"
)

// MotorEvent is one row of the append-only audit trail: every transition the
// safety machine makes, and every rejected manual attempt.
type MotorEvent struct {
	ID              string    `json:"id"`
	DeviceID        string    `json:"device_id"`
	EventType       string    `json:"event_type"`     // start | stop | start_rejected | resume_auto
	Trigger         string    `json:"trigger"`        // auto | manual | safety
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// MotorState is the derived per-pump snapshot. It is authoritative in memory
// and rebuilt from motor_events and latest readings after a restart.
type MotorState struct {
	DeviceID     string    `json:"device_id"`
	State        string    `json:"state"` // idle | running | manual_override | safety_lockout
	MotorRunning bool      `json:"motor_running"`
	SumpLevel    float64   `json:"sump_level"`
	TopLevel     float64   `json:"top_level"`
	FloatSwitch  bool      `json:"float_switch"`
	LastStartAt  time.Time `json:"last_start_at"`
	LastStopAt   time.Time `json:"last_stop_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
