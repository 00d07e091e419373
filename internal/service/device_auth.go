package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"tankguard/internal/logger"
	"tankguard/internal/models"
	"tankguard/internal/repository"
)

// DeviceAuthService verifies that a request really comes from a provisioned
// device and was not replayed outside the drift window.
type DeviceAuthService struct {
	devices  repository.Devices
	log      *logger.Logger
	required bool          // HMAC enforcement; false is a transitional mode
	drift    time.Duration // allowed |now - claimed timestamp|
	now      func() time.Time
}

func NewDeviceAuthService(devices repository.Devices, log *logger.Logger, hmacRequired bool, drift time.Duration) *DeviceAuthService {
	return &DeviceAuthService{
		devices:  devices,
		log:      log,
		required: hmacRequired,
		drift:    drift,
		now:      time.Now,
	}
}

// SignPayload computes the lowercase-hex HMAC-SHA256 over
// deviceID + rawBody + timestamp, keyed by secret. Exported so tests and
// provisioning tooling produce exactly what Verify expects.
func SignPayload(secret, deviceID string, rawBody []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(deviceID))
	mac.Write(rawBody)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify authenticates a signed device request and touches last_seen on
// success. The returned device is never nil when err is nil.
func (s *DeviceAuthService) Verify(ctx context.Context, deviceID, apiKey string, rawBody []byte, claimedTimestamp, claimedSignature string) (*models.Device, error) {
	dev, err := s.lookup(ctx, deviceID, apiKey)
	if err != nil {
		return nil, err
	}

	if !s.required {
		// Transitional mode: credential lookup only. Loudly logged so nobody
		// mistakes it for a security boundary.
		s.log.Warnw("hmac_not_required_mode", "device_id", deviceID,
			"detail", "signature and timestamp checks skipped")
		return s.touch(ctx, dev)
	}

	ts, err := strconv.ParseInt(claimedTimestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable x-timestamp", ErrClockDrift)
	}
	if d := s.now().UTC().Unix() - ts; d > int64(s.drift.Seconds()) || -d > int64(s.drift.Seconds()) {
		return nil, ErrClockDrift
	}

	expected := SignPayload(dev.HMACSecret, deviceID, rawBody, claimedTimestamp)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(claimedSignature)) != 1 {
		return nil, ErrBadSignature
	}

	return s.touch(ctx, dev)
}

// VerifyAPIKey authenticates by device id + api key only (diagnostic ping).
func (s *DeviceAuthService) VerifyAPIKey(ctx context.Context, deviceID, apiKey string) (*models.Device, error) {
	dev, err := s.lookup(ctx, deviceID, apiKey)
	if err != nil {
		return nil, err
	}
	return s.touch(ctx, dev)
}

func (s *DeviceAuthService) lookup(ctx context.Context, deviceID, apiKey string) (*models.Device, error) {
	if deviceID == "" {
		return nil, ErrUnknownDevice
	}
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	if dev == nil || !dev.IsActive {
		return nil, ErrUnknownDevice
	}
	if subtle.ConstantTimeCompare([]byte(dev.APIKey), []byte(apiKey)) != 1 {
		return nil, ErrBadAPIKey
	}
	return dev, nil
}

func (s *DeviceAuthService) touch(ctx context.Context, dev *models.Device) (*models.Device, error) {
	now := s.now().UTC()
	if err := s.devices.UpdateLastSeen(ctx, dev.ID, now); err != nil {
		// Liveness bookkeeping must not fail an otherwise valid request.
		s.log.Errorw("update_last_seen_failed", "device_id", dev.ID, "err", err)
	} else {
		dev.LastSeen = now
	}
	return dev, nil
}
