package models

import "time"

// Command types enqueued for devices.
const (
	CommandMotorStart = "motor_start"
	CommandMotorStop  = "motor_stop"
)

// DeviceCommand is a durable queue entry. Devices fetch pending commands on
// heartbeat or an explicit poll and must acknowledge each id exactly once;
// unacknowledged commands expire at TTL and are swept.
type DeviceCommand struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Type         string    `json:"type"`
	Payload      any       `json:"payload,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	TTL          time.Time `json:"ttl"` // absolute expiry
	RetryCount   int       `json:"retry_count"`
	Acknowledged bool      `json:"acknowledged"`
}

// Expired reports whether the command is past its TTL at the given instant.
func (c DeviceCommand) Expired(now time.Time) bool {
	return now.After(c.TTL)
}
