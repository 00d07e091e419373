package service

import (
	"errors"
	"fmt"
)

// Authentication failures. Terminal for the request; never retried here.
var (
	ErrUnknownDevice = errors.New("unknown or inactive device")
	ErrBadAPIKey     = errors.New("api key mismatch")
	ErrBadSignature  = errors.New("signature mismatch")
	ErrClockDrift    = errors.New("timestamp outside allowed drift window")
)

// Protocol version failures.
var (
	ErrVersionMissing = errors.New("protocol_version missing")
	ErrVersionTooOld  = errors.New("protocol version too old; please upgrade firmware")
	ErrVersionTooNew  = errors.New("protocol version too new; server must upgrade")
)

// Motor control outcomes that are decisions, not faults.
var (
	ErrSafetyRejected  = errors.New("rejected by safety check")
	ErrDeviceNotSump   = errors.New("device does not control a pump")
	ErrCommandNotFound = errors.New("command not found")
)

// ValidationError reports a malformed telemetry field. Nothing is persisted
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsAuthErr reports whether err belongs to the authentication taxonomy.
func IsAuthErr(err error) bool {
	return errors.Is(err, ErrUnknownDevice) ||
		errors.Is(err, ErrBadAPIKey) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrClockDrift)
}
