package models

import "time"

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SystemAlert is an emitted alert: either reported by a device directly or
// raised by ingestion when a level crosses a critical threshold. Delivery
// beyond persistence and a log line is someone else's problem.
type SystemAlert struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	AlertType string    `json:"alert_type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
