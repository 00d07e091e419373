package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tankguard/internal/logger"
	"tankguard/internal/models"
	"tankguard/internal/repository"
)

const storeTimeout = 5 * time.Second

// CommandQueueService is the durable per-device command queue: TTL-bounded
// entries, oldest-first delivery, idempotent acknowledgement, periodic sweep.
type CommandQueueService struct {
	commands   repository.Commands
	log        *logger.Logger
	defaultTTL time.Duration
	now        func() time.Time
}

func NewCommandQueueService(commands repository.Commands, log *logger.Logger, defaultTTL time.Duration) *CommandQueueService {
	return &CommandQueueService{
		commands:   commands,
		log:        log,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

var _ CommandQueue = (*CommandQueueService)(nil)

// Enqueue creates a command with absolute expiry now + ttl. ttl <= 0 takes
// the configured default (1 hour out of the box).
func (s *CommandQueueService) Enqueue(ctx context.Context, deviceID, cmdType string, payload any, ttl time.Duration) (*models.DeviceCommand, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now().UTC()
	cmd := models.DeviceCommand{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Type:      cmdType,
		Payload:   payload,
		CreatedAt: now,
		TTL:       now.Add(ttl),
	}
	if err := s.commands.Insert(ctx, cmd); err != nil {
		return nil, fmt.Errorf("enqueue %s for %s: %w", cmdType, deviceID, err)
	}
	return &cmd, nil
}

// Poll returns all deliverable commands for a device, oldest first, and
// bumps retry_count on each one handed out. Commands stay queued until
// acknowledged or swept.
func (s *CommandQueueService) Poll(ctx context.Context, deviceID string) ([]models.DeviceCommand, error) {
	cmds, err := s.commands.PendingForDevice(ctx, deviceID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return cmds, nil
	}

	ids := make([]string, len(cmds))
	for i := range cmds {
		ids[i] = cmds[i].ID
		cmds[i].RetryCount++ // reflect the delivery we are about to make
	}
	if err := s.commands.IncrementRetries(ctx, ids); err != nil {
		// Delivery accounting failed; the commands themselves are still valid.
		s.log.Errorw("retry_count_update_failed", "device_id", deviceID, "err", err)
	}
	return cmds, nil
}

// Pending is the read-only view for operators; no retry accounting.
func (s *CommandQueueService) Pending(ctx context.Context, deviceID string) ([]models.DeviceCommand, error) {
	return s.commands.PendingForDevice(ctx, deviceID, s.now().UTC())
}

// Acknowledge marks a command delivered. Acknowledging twice is not an
// error: devices retry acks after lost responses.
func (s *CommandQueueService) Acknowledge(ctx context.Context, commandID string) (AckResult, error) {
	cmd, err := s.commands.Get(ctx, commandID)
	if err != nil {
		return "", err
	}
	if cmd == nil {
		return "", ErrCommandNotFound
	}
	if cmd.Acknowledged {
		return AckAlready, nil
	}
	if cmd.Expired(s.now().UTC()) {
		return AckExpired, nil
	}
	if err := s.commands.MarkAcknowledged(ctx, commandID); err != nil {
		return "", err
	}
	return AckOK, nil
}

// Run sweeps acknowledged and expired commands until ctx is canceled.
// Stop via context cancellation in main() for graceful shutdown.
func (s *CommandQueueService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *CommandQueueService) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	n, err := s.commands.DeleteFinished(sweepCtx, s.now().UTC())
	if err != nil {
		s.log.Errorw("command_sweep_failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("command_sweep", "removed", n)
	}
}
