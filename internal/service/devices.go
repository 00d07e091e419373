package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"tankguard/internal/models"
	"tankguard/internal/repository"
)

// DeviceAdminService handles provisioning, pairing, and deactivation.
type DeviceAdminService struct {
	devices repository.Devices
}

func NewDeviceAdminService(devices repository.Devices) *DeviceAdminService {
	return &DeviceAdminService{devices: devices}
}

var _ DeviceAdmin = (*DeviceAdminService)(nil)

// Provision creates an active device with freshly generated credentials.
// The HMAC secret is returned here and never exposed again.
func (s *DeviceAdminService) Provision(ctx context.Context, p ProvisionParams) (*models.Device, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}
	if !models.KnownTankType(p.TankType) {
		return nil, &ValidationError{Field: "tank_type", Reason: fmt.Sprintf("unknown value %q", p.TankType)}
	}

	apiKey, err := randomToken(24)
	if err != nil {
		return nil, err
	}
	secret, err := randomToken(32)
	if err != nil {
		return nil, err
	}

	dev := models.Device{
		ID:         id,
		Name:       strings.TrimSpace(p.Name),
		TankType:   p.TankType,
		APIKey:     apiKey,
		HMACSecret: secret,
		IsActive:   true,
		LastSeen:   time.Now().UTC(),
	}
	if err := s.devices.Create(ctx, dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *DeviceAdminService) List(ctx context.Context) ([]models.Device, error) {
	return s.devices.List(ctx)
}

// Pair makes topID's readings drive sumpID's pump decisions. Both devices
// must exist and carry the matching tank types.
func (s *DeviceAdminService) Pair(ctx context.Context, sumpID, topID string) error {
	sump, err := s.devices.GetByID(ctx, sumpID)
	if err != nil {
		return err
	}
	if sump == nil || sump.TankType != models.TankSump {
		return &ValidationError{Field: "sump_device_id", Reason: "must be an existing sump_tank device"}
	}
	top, err := s.devices.GetByID(ctx, topID)
	if err != nil {
		return err
	}
	if top == nil || top.TankType != models.TankTop {
		return &ValidationError{Field: "top_device_id", Reason: "must be an existing top_tank device"}
	}
	return s.devices.Pair(ctx, sumpID, topID)
}

// Deactivate turns a device's credentials off; its history stays.
func (s *DeviceAdminService) Deactivate(ctx context.Context, deviceID string) error {
	return s.devices.SetActive(ctx, deviceID, false)
}

func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
