package models

import "time"

// Tank types a device can report for.
const (
	TankSump = "sump_tank"
	TankTop  = "top_tank"
)

// KnownTankType reports whether s is one of the accepted tank type values.
func KnownTankType(s string) bool {
	return s == TankSump || s == TankTop
}

// Device is a provisioned sensor node. HMACSecret is never serialized.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TankType   string    `json:"tank_type"` // sump_tank | top_tank
	APIKey     string    `json:"api_key"`
	HMACSecret string    `json:"-"`
	IsActive   bool      `json:"is_active"`
	LastSeen   time.Time `json:"last_seen"`
}

// DevicePairing links a sump device to the top-tank device whose readings
// feed its motor decisions.
type DevicePairing struct {
	SumpDeviceID string `json:"sump_device_id"`
	TopDeviceID  string `json:"top_device_id"`
}
