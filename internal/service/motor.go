package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tankguard/internal/logger"
	"tankguard/internal/models"
	"tankguard/internal/repository"
)

// MotorThresholds are the safety parameters evaluated on every reading.
type MotorThresholds struct {
	AutoStartLevel float64 // top tank %, start below this
	AutoStopLevel  float64 // top tank %, stop above this
	SumpLowLevel   float64 // sump %, hard floor for any start, forced stop below
	MaxRuntime     time.Duration
	MinOffTime     time.Duration
}

// motorUnit is the per-pump state plus its serialization lock. All
// transitions for one sump device (including readings from its paired top
// tank) run under mu, so concurrent readings cannot interleave decisions.
type motorUnit struct {
	mu    sync.Mutex
	state models.MotorState

	// last processed device-supplied timestamps, one per source device
	lastProcessed map[string]time.Time

	sumpKnown  bool
	topKnown   bool
	floatKnown bool // device may have no float switch at all
	hydrated   bool
}

// MotorSafetyService owns one state machine per sump device, keyed in a
// registry. State is derived: rebuilt from motor_events and latest readings
// when a device is first seen after a restart.
type MotorSafetyService struct {
	events    repository.MotorEvents
	telemetry repository.Telemetry
	devices   repository.Devices
	queue     CommandQueue
	log       *logger.Logger
	th        MotorThresholds
	now       func() time.Time

	mu    sync.Mutex // guards units map only
	units map[string]*motorUnit
}

func NewMotorSafetyService(repos *repository.Repository, queue CommandQueue, log *logger.Logger, th MotorThresholds) *MotorSafetyService {
	return &MotorSafetyService{
		events:    repos.MotorEvents,
		telemetry: repos.Telemetry,
		devices:   repos.Devices,
		queue:     queue,
		log:       log,
		th:        th,
		now:       time.Now,
		units:     make(map[string]*motorUnit),
	}
}

var _ MotorControl = (*MotorSafetyService)(nil)

func (s *MotorSafetyService) unit(deviceID string) *motorUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[deviceID]
	if !ok {
		u = &motorUnit{
			state: models.MotorState{
				DeviceID: deviceID,
				State:    models.StateIdle,
			},
			lastProcessed: make(map[string]time.Time),
		}
		s.units[deviceID] = u
	}
	return u
}

// hydrate rebuilds derived state from the audit trail. Caller holds u.mu.
func (s *MotorSafetyService) hydrate(ctx context.Context, u *motorUnit, sumpID string) {
	if u.hydrated {
		return
	}
	u.hydrated = true

	if ev, err := s.events.LastByType(ctx, sumpID, models.EventStart); err == nil && ev != nil {
		u.state.LastStartAt = ev.OccurredAt
	}
	if ev, err := s.events.LastByType(ctx, sumpID, models.EventStop); err == nil && ev != nil {
		u.state.LastStopAt = ev.OccurredAt
	}
	u.state.MotorRunning = u.state.LastStartAt.After(u.state.LastStopAt)
	if u.state.MotorRunning {
		u.state.State = models.StateRunning
	}

	if r, err := s.telemetry.LatestForDevice(ctx, sumpID); err == nil && r != nil {
		u.state.SumpLevel = r.LevelPercentage
		u.sumpKnown = true
		if r.FloatSwitch != nil {
			u.state.FloatSwitch = *r.FloatSwitch
			u.floatKnown = true
		}
	}
	if topID, err := s.devices.PairedTop(ctx, sumpID); err == nil && topID != "" {
		if r, err := s.telemetry.LatestForDevice(ctx, topID); err == nil && r != nil {
			u.state.TopLevel = r.LevelPercentage
			u.topKnown = true
		}
	}
}

// OnReading feeds one normalized reading into the machine for sumpID. The
// reading may originate from the sump device itself or its paired top tank.
func (s *MotorSafetyService) OnReading(ctx context.Context, sumpID string, r models.TelemetryReading) error {
	u := s.unit(sumpID)
	u.mu.Lock()
	defer u.mu.Unlock()
	s.hydrate(ctx, u, sumpID)

	// Out-of-order protection: per source device, only monotonically
	// increasing device timestamps advance the machine.
	if last, ok := u.lastProcessed[r.DeviceID]; ok && !r.ReadingAt.After(last) {
		s.log.Debugw("reading_out_of_order_discarded",
			"device_id", r.DeviceID, "reading_at", r.ReadingAt, "last", last)
		return nil
	}
	u.lastProcessed[r.DeviceID] = r.ReadingAt

	switch r.TankType {
	case models.TankSump:
		u.state.SumpLevel = r.LevelPercentage
		u.sumpKnown = true
		if r.FloatSwitch != nil {
			u.state.FloatSwitch = *r.FloatSwitch
			u.floatKnown = true
		}
		// The device reports what the relay actually did; trust it over our
		// own bookkeeping so a missed command cannot leave us divergent.
		if r.MotorRunning != nil {
			u.state.MotorRunning = *r.MotorRunning
		}
	case models.TankTop:
		u.state.TopLevel = r.LevelPercentage
		u.topKnown = true
	}
	u.state.UpdatedAt = s.now().UTC()

	return s.evaluate(ctx, u, sumpID)
}

// SyncMotorRunning applies a motor-status report from the device. Status
// reports ride the same device-side retry queue as telemetry, so the
// monotonic-timestamp guard applies here too: a resent stale report must
// not overwrite fresher state.
func (s *MotorSafetyService) SyncMotorRunning(ctx context.Context, sumpID string, running bool, reportedAt time.Time) error {
	u := s.unit(sumpID)
	u.mu.Lock()
	defer u.mu.Unlock()
	s.hydrate(ctx, u, sumpID)

	if last, ok := u.lastProcessed[sumpID]; ok && !reportedAt.After(last) {
		s.log.Debugw("motor_status_out_of_order_discarded",
			"device_id", sumpID, "reported_at", reportedAt, "last", last)
		return nil
	}
	u.lastProcessed[sumpID] = reportedAt

	u.state.MotorRunning = running
	u.state.UpdatedAt = s.now().UTC()
	return s.evaluate(ctx, u, sumpID)
}

// evaluate applies the transition rules. Caller holds u.mu.
func (s *MotorSafetyService) evaluate(ctx context.Context, u *motorUnit, sumpID string) error {
	now := s.now().UTC()
	st := &u.state

	// Stop conditions are checked first in every state: stop always wins.
	if st.MotorRunning {
		if u.sumpKnown && st.SumpLevel < s.th.SumpLowLevel {
			return s.stop(ctx, u, sumpID, models.TriggerSafety,
				fmt.Sprintf("sump level %.1f%% below safety floor %.1f%%", st.SumpLevel, s.th.SumpLowLevel), now)
		}
		if !st.LastStartAt.IsZero() && now.Sub(st.LastStartAt) >= s.th.MaxRuntime {
			return s.stop(ctx, u, sumpID, models.TriggerSafety,
				fmt.Sprintf("max runtime %s exceeded", s.th.MaxRuntime), now)
		}
	}

	// Manual override suspends auto evaluation entirely (safety stops above
	// still apply). SafetyLockout clears once the trigger condition is gone
	// and the rest period has elapsed.
	switch st.State {
	case models.StateManualOverride:
		return nil
	case models.StateSafetyLockout:
		if !s.lockoutCleared(u, now) {
			return nil
		}
		st.State = models.StateIdle
	}

	if st.MotorRunning {
		if u.topKnown && st.TopLevel > s.th.AutoStopLevel {
			return s.stop(ctx, u, sumpID, models.TriggerAuto,
				fmt.Sprintf("top tank level %.1f%% above stop threshold %.1f%%", st.TopLevel, s.th.AutoStopLevel), now)
		}
		return nil
	}

	// Idle: consider an auto start.
	if !u.topKnown || !u.sumpKnown {
		return nil // cannot decide on one-sided data
	}
	if st.TopLevel >= s.th.AutoStartLevel {
		return nil
	}
	if st.SumpLevel <= s.th.SumpLowLevel {
		return nil
	}
	if u.floatKnown && !st.FloatSwitch {
		return nil
	}
	if !st.LastStopAt.IsZero() && now.Sub(st.LastStopAt) < s.th.MinOffTime {
		return nil // short-cycling guard
	}
	return s.start(ctx, u, sumpID, models.TriggerAuto,
		fmt.Sprintf("top tank %.1f%% below start threshold %.1f%%", st.TopLevel, s.th.AutoStartLevel), now)
}

func (s *MotorSafetyService) lockoutCleared(u *motorUnit, now time.Time) bool {
	if u.sumpKnown && u.state.SumpLevel < s.th.SumpLowLevel {
		return false
	}
	return u.state.LastStopAt.IsZero() || now.Sub(u.state.LastStopAt) >= s.th.MinOffTime
}

// start records the transition, enqueues motor_start, and moves to Running.
// Caller holds u.mu.
func (s *MotorSafetyService) start(ctx context.Context, u *motorUnit, sumpID, trigger, reason string, now time.Time) error {
	if err := s.events.Append(ctx, models.MotorEvent{
		DeviceID:   sumpID,
		EventType:  models.EventStart,
		Trigger:    trigger,
		Reason:     reason,
		OccurredAt: now,
	}); err != nil {
		return fmt.Errorf("append start event: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, sumpID, models.CommandMotorStart, map[string]any{"reason": reason}, 0); err != nil {
		return fmt.Errorf("enqueue motor_start: %w", err)
	}

	u.state.MotorRunning = true
	u.state.LastStartAt = now
	u.state.UpdatedAt = now
	if trigger == models.TriggerManual {
		u.state.State = models.StateManualOverride
	} else {
		u.state.State = models.StateRunning
	}
	s.log.Infow("motor_start", "device_id", sumpID, "trigger", trigger, "reason", reason)
	return nil
}

// stop records the transition, enqueues motor_stop, and moves to the state
// the trigger dictates. Caller holds u.mu.
func (s *MotorSafetyService) stop(ctx context.Context, u *motorUnit, sumpID, trigger, reason string, now time.Time) error {
	var duration *int
	if !u.state.LastStartAt.IsZero() {
		d := int(now.Sub(u.state.LastStartAt).Seconds())
		duration = &d
	}
	if err := s.events.Append(ctx, models.MotorEvent{
		DeviceID:        sumpID,
		EventType:       models.EventStop,
		Trigger:         trigger,
		DurationSeconds: duration,
		Reason:          reason,
		OccurredAt:      now,
	}); err != nil {
		return fmt.Errorf("append stop event: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, sumpID, models.CommandMotorStop, map[string]any{"reason": reason}, 0); err != nil {
		return fmt.Errorf("enqueue motor_stop: %w", err)
	}

	u.state.MotorRunning = false
	u.state.LastStopAt = now
	u.state.UpdatedAt = now
	switch {
	case trigger == models.TriggerSafety:
		u.state.State = models.StateSafetyLockout
	case trigger == models.TriggerManual:
		u.state.State = models.StateManualOverride
	default:
		u.state.State = models.StateIdle
	}
	s.log.Infow("motor_stop", "device_id", sumpID, "trigger", trigger, "reason", reason)
	return nil
}

// ManualStart is an operator start request. It bypasses min-off-time and
// max-runtime but never the sump-low/float-switch safety floor: an unsafe
// request is rejected, audited, and nothing is enqueued.
func (s *MotorSafetyService) ManualStart(ctx context.Context, sumpID string) error {
	u := s.unit(sumpID)
	u.mu.Lock()
	defer u.mu.Unlock()
	s.hydrate(ctx, u, sumpID)
	now := s.now().UTC()

	if reason, ok := s.manualStartUnsafe(u); ok {
		if err := s.events.Append(ctx, models.MotorEvent{
			DeviceID:   sumpID,
			EventType:  models.EventStartRejected,
			Trigger:    models.TriggerSafety,
			Reason:     reason,
			OccurredAt: now,
		}); err != nil {
			return fmt.Errorf("append rejection event: %w", err)
		}
		s.log.Warnw("manual_start_rejected", "device_id", sumpID, "reason", reason)
		return fmt.Errorf("%w: %s", ErrSafetyRejected, reason)
	}

	return s.start(ctx, u, sumpID, models.TriggerManual, "manual start command", now)
}

func (s *MotorSafetyService) manualStartUnsafe(u *motorUnit) (string, bool) {
	if !u.sumpKnown {
		return "no sump reading available", true
	}
	if u.state.SumpLevel <= s.th.SumpLowLevel {
		return fmt.Sprintf("sump level %.1f%% at or below safety floor %.1f%%",
			u.state.SumpLevel, s.th.SumpLowLevel), true
	}
	if u.floatKnown && !u.state.FloatSwitch {
		return "float switch indicates no water", true
	}
	return "", false
}

// ManualStop is an operator stop request; always allowed.
func (s *MotorSafetyService) ManualStop(ctx context.Context, sumpID string) error {
	u := s.unit(sumpID)
	u.mu.Lock()
	defer u.mu.Unlock()
	s.hydrate(ctx, u, sumpID)
	return s.stop(ctx, u, sumpID, models.TriggerManual, "manual stop command", s.now().UTC())
}

// ResumeAuto returns a manually overridden pump to auto evaluation.
func (s *MotorSafetyService) ResumeAuto(ctx context.Context, sumpID string) error {
	u := s.unit(sumpID)
	u.mu.Lock()
	defer u.mu.Unlock()
	s.hydrate(ctx, u, sumpID)
	now := s.now().UTC()

	if u.state.MotorRunning {
		u.state.State = models.StateRunning
	} else {
		u.state.State = models.StateIdle
	}
	u.state.UpdatedAt = now

	if err := s.events.Append(ctx, models.MotorEvent{
		DeviceID:   sumpID,
		EventType:  models.EventResumeAuto,
		Trigger:    models.TriggerManual,
		Reason:     "resume auto command",
		OccurredAt: now,
	}); err != nil {
		return fmt.Errorf("append resume event: %w", err)
	}
	// Re-evaluate immediately so a pending condition acts without waiting
	// for the next reading.
	return s.evaluate(ctx, u, sumpID)
}

// GetState returns a copy of the current derived state for a pump device.
func (s *MotorSafetyService) GetState(ctx context.Context, sumpID string) (models.MotorState, error) {
	u := s.unit(sumpID)
	u.mu.Lock()
	defer u.mu.Unlock()
	s.hydrate(ctx, u, sumpID)
	return u.state, nil
}
