package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tankguard/internal/logger"
	"tankguard/internal/models"
	"tankguard/internal/repository"
)

// ---- Shared Repository Fakes ----

type fakeEventRepo struct {
	appendErr error
	events    []models.MotorEvent
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.MotorEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) List(ctx context.Context, filter repository.EventFilter) ([]models.MotorEvent, error) {
	var out []models.MotorEvent
	for _, e := range f.events {
		if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Type != "" && e.EventType != filter.Type {
			continue
		}
		if !filter.From.IsZero() && e.OccurredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.OccurredAt.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) LastByType(ctx context.Context, deviceID, eventType string) (*models.MotorEvent, error) {
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].DeviceID == deviceID && f.events[i].EventType == eventType {
			e := f.events[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeEventRepo) byType(eventType string) []models.MotorEvent {
	var out []models.MotorEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeTelemetryRepo struct {
	latest    map[string]*models.TelemetryReading
	insertID  int64
	duplicate bool
	insertErr error
	inserts   []models.TelemetryReading
}

func (f *fakeTelemetryRepo) Insert(ctx context.Context, r models.TelemetryReading) (int64, bool, error) {
	if f.insertErr != nil {
		return 0, false, f.insertErr
	}
	f.inserts = append(f.inserts, r)
	return f.insertID, !f.duplicate, nil
}

func (f *fakeTelemetryRepo) LatestForDevice(ctx context.Context, deviceID string) (*models.TelemetryReading, error) {
	return f.latest[deviceID], nil
}

type fakeDeviceRepo struct {
	devices    map[string]*models.Device
	topForSump map[string]string
	sumpForTop map[string]string
	lastSeen   map[string]time.Time

	updateLastSeenErr error
	pairs             [][2]string
	deactivated       []string
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{
		devices:    map[string]*models.Device{},
		topForSump: map[string]string{},
		sumpForTop: map[string]string{},
		lastSeen:   map[string]time.Time{},
	}
}

func (f *fakeDeviceRepo) Create(ctx context.Context, d models.Device) error {
	f.devices[d.ID] = &d
	return nil
}

func (f *fakeDeviceRepo) GetByID(ctx context.Context, id string) (*models.Device, error) {
	if d, ok := f.devices[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeDeviceRepo) List(ctx context.Context) ([]models.Device, error) {
	var out []models.Device
	for _, d := range f.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDeviceRepo) UpdateLastSeen(ctx context.Context, id string, t time.Time) error {
	if f.updateLastSeenErr != nil {
		return f.updateLastSeenErr
	}
	f.lastSeen[id] = t
	return nil
}

func (f *fakeDeviceRepo) SetActive(ctx context.Context, id string, active bool) error {
	if d, ok := f.devices[id]; ok {
		d.IsActive = active
	}
	if !active {
		f.deactivated = append(f.deactivated, id)
	}
	return nil
}

func (f *fakeDeviceRepo) Pair(ctx context.Context, sumpID, topID string) error {
	f.topForSump[sumpID] = topID
	f.sumpForTop[topID] = sumpID
	f.pairs = append(f.pairs, [2]string{sumpID, topID})
	return nil
}

func (f *fakeDeviceRepo) PairedTop(ctx context.Context, sumpID string) (string, error) {
	return f.topForSump[sumpID], nil
}

func (f *fakeDeviceRepo) SumpForTop(ctx context.Context, topID string) (string, error) {
	return f.sumpForTop[topID], nil
}

type fakeQueue struct {
	enqueued   []models.DeviceCommand
	enqueueErr error
}

func (f *fakeQueue) Enqueue(ctx context.Context, deviceID, cmdType string, payload any, ttl time.Duration) (*models.DeviceCommand, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	cmd := models.DeviceCommand{ID: "cmd", DeviceID: deviceID, Type: cmdType, Payload: payload}
	f.enqueued = append(f.enqueued, cmd)
	return &cmd, nil
}

func (f *fakeQueue) Poll(ctx context.Context, deviceID string) ([]models.DeviceCommand, error) {
	return nil, nil
}

func (f *fakeQueue) Pending(ctx context.Context, deviceID string) ([]models.DeviceCommand, error) {
	return nil, nil
}

func (f *fakeQueue) Acknowledge(ctx context.Context, commandID string) (AckResult, error) {
	return AckOK, nil
}

func (f *fakeQueue) Run(ctx context.Context, tick time.Duration) {}

// ---- Motor Test Harness ----

var testThresholds = MotorThresholds{
	AutoStartLevel: 20,
	AutoStopLevel:  80,
	SumpLowLevel:   25,
	MaxRuntime:     60 * time.Minute,
	MinOffTime:     15 * time.Minute,
}

type motorFixture struct {
	svc     *MotorSafetyService
	events  *fakeEventRepo
	tele    *fakeTelemetryRepo
	devices *fakeDeviceRepo
	queue   *fakeQueue
	now     time.Time
}

func newMotorFixture(t *testing.T) *motorFixture {
	t.Helper()
	f := &motorFixture{
		events:  &fakeEventRepo{},
		tele:    &fakeTelemetryRepo{latest: map[string]*models.TelemetryReading{}},
		devices: newFakeDeviceRepo(),
		queue:   &fakeQueue{},
		now:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	repos := &repository.Repository{
		Devices:     f.devices,
		Telemetry:   f.tele,
		MotorEvents: f.events,
	}
	f.svc = NewMotorSafetyService(repos, f.queue, logger.Get(logger.ErrorLevel), testThresholds)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func sumpReading(deviceID string, level float64, at time.Time, floatSwitch *bool) models.TelemetryReading {
	return models.TelemetryReading{
		DeviceID:        deviceID,
		TankType:        models.TankSump,
		LevelPercentage: level,
		FloatSwitch:     floatSwitch,
		ReadingAt:       at,
	}
}

func topReading(deviceID string, level float64, at time.Time) models.TelemetryReading {
	return models.TelemetryReading{
		DeviceID:        deviceID,
		TankType:        models.TankTop,
		LevelPercentage: level,
		ReadingAt:       at,
	}
}

func boolPtr(b bool) *bool { return &b }

// ---- Tests ----

func TestMotor_AutoStart_TopLowSumpHealthy(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	// Last stop long enough ago that min-off-time does not apply.
	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStop, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-20 * time.Minute),
	})

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-2*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Fatalf("no start should happen on one-sided data, enqueued %v", f.queue.enqueued)
	}

	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 15, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}

	starts := f.events.byType(models.EventStart)
	if len(starts) != 1 {
		t.Fatalf("expected 1 start event, got %d", len(starts))
	}
	if starts[0].Trigger != models.TriggerAuto {
		t.Fatalf("expected auto trigger, got %q", starts[0].Trigger)
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0].Type != models.CommandMotorStart {
		t.Fatalf("expected one motor_start command, got %v", f.queue.enqueued)
	}

	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateRunning || !st.MotorRunning {
		t.Fatalf("unexpected state after auto start: %+v", st)
	}
}

func TestMotor_AutoStart_SuppressedByMinOffTime(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	// Stopped 10 minutes ago: inside the 15-minute rest period.
	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStop, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-10 * time.Minute),
	})

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-2*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 15, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Fatalf("start must be suppressed during min-off-time, enqueued %v", f.queue.enqueued)
	}

	// 6 minutes later the rest period has elapsed; the next reading starts it.
	f.now = f.now.Add(6 * time.Minute)
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 15, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading after rest: %v", err)
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0].Type != models.CommandMotorStart {
		t.Fatalf("expected motor_start after rest period, got %v", f.queue.enqueued)
	}
}

func TestMotor_SafetyStop_SumpBelowFloor(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	// Running for 20 minutes.
	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStart, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-20 * time.Minute),
	})

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 22, f.now.Add(-time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}

	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 {
		t.Fatalf("expected 1 stop event, got %d", len(stops))
	}
	if stops[0].Trigger != models.TriggerSafety {
		t.Fatalf("expected safety trigger, got %q", stops[0].Trigger)
	}
	if stops[0].DurationSeconds == nil || *stops[0].DurationSeconds != 1200 {
		t.Fatalf("expected duration 1200s, got %v", stops[0].DurationSeconds)
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0].Type != models.CommandMotorStop {
		t.Fatalf("expected motor_stop command, got %v", f.queue.enqueued)
	}

	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateSafetyLockout || st.MotorRunning {
		t.Fatalf("expected safety_lockout, got %+v", st)
	}
}

func TestMotor_SafetyStop_MaxRuntimeExceeded(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStart, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-61 * time.Minute),
	})

	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 50, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}

	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 || stops[0].Trigger != models.TriggerSafety {
		t.Fatalf("expected one safety stop, got %v", stops)
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateSafetyLockout {
		t.Fatalf("expected safety_lockout, got %q", st.State)
	}
}

func TestMotor_AutoStop_TopAboveThreshold(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStart, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-5 * time.Minute),
	})

	// Sump is healthy, so only the top-level condition can stop.
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-2*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 85, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}

	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 || stops[0].Trigger != models.TriggerAuto {
		t.Fatalf("expected one auto stop, got %v", stops)
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateIdle {
		t.Fatalf("auto stop should land in idle, got %q", st.State)
	}
}

func TestMotor_OutOfOrderReadingDiscarded(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStart, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-5 * time.Minute),
	})

	t1 := f.now.Add(-time.Minute)
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, t1, nil)); err != nil {
		t.Fatalf("first reading: %v", err)
	}
	// Older reading with an alarming level arrives late: must be ignored.
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 10, t1.Add(-30*time.Second), nil)); err != nil {
		t.Fatalf("stale reading: %v", err)
	}

	if len(f.events.byType(models.EventStop)) != 0 {
		t.Fatalf("stale reading must not trigger a stop")
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.SumpLevel != 60 {
		t.Fatalf("stale reading overwrote level: %+v", st)
	}
}

func TestMotor_ManualStart_RejectedWhenSumpLow(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 20, f.now.Add(-time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}

	err := f.svc.ManualStart(ctx, "sump-1")
	if !errors.Is(err, ErrSafetyRejected) {
		t.Fatalf("expected ErrSafetyRejected, got %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Fatalf("rejected start must not enqueue, got %v", f.queue.enqueued)
	}
	rejected := f.events.byType(models.EventStartRejected)
	if len(rejected) != 1 || rejected[0].Trigger != models.TriggerSafety {
		t.Fatalf("expected one audited rejection, got %v", rejected)
	}
}

func TestMotor_ManualStart_BypassesMinOffTime(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	// Stopped 5 minutes ago: an auto start would be suppressed.
	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStop, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-5 * time.Minute),
	})

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.ManualStart(ctx, "sump-1"); err != nil {
		t.Fatalf("manual start: %v", err)
	}

	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0].Type != models.CommandMotorStart {
		t.Fatalf("expected motor_start, got %v", f.queue.enqueued)
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateManualOverride || !st.MotorRunning {
		t.Fatalf("expected manual_override running, got %+v", st)
	}
}

func TestMotor_ManualOverride_SafetyStillStops(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-2*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.ManualStart(ctx, "sump-1"); err != nil {
		t.Fatalf("manual start: %v", err)
	}

	// Override suspends auto behavior but never the safety floor.
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 22, f.now.Add(-time.Second), boolPtr(true))); err != nil {
		t.Fatalf("low sump reading: %v", err)
	}

	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 || stops[0].Trigger != models.TriggerSafety {
		t.Fatalf("expected safety stop under override, got %v", stops)
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateSafetyLockout {
		t.Fatalf("expected safety_lockout, got %q", st.State)
	}
}

func TestMotor_ManualOverride_SuspendsAutoStop(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-3*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.ManualStart(ctx, "sump-1"); err != nil {
		t.Fatalf("manual start: %v", err)
	}

	// Top above the auto-stop threshold would normally stop the pump.
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 90, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}

	if len(f.events.byType(models.EventStop)) != 0 {
		t.Fatalf("auto stop must not fire under manual override")
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateManualOverride || !st.MotorRunning {
		t.Fatalf("expected manual_override running, got %+v", st)
	}
}

func TestMotor_ResumeAuto_ReevaluatesImmediately(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-2*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 90, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}
	if err := f.svc.ManualStart(ctx, "sump-1"); err != nil {
		t.Fatalf("manual start: %v", err)
	}

	// Resuming auto with the top tank above the stop threshold must stop at once.
	if err := f.svc.ResumeAuto(ctx, "sump-1"); err != nil {
		t.Fatalf("resume auto: %v", err)
	}

	if len(f.events.byType(models.EventResumeAuto)) != 1 {
		t.Fatalf("expected one resume_auto event")
	}
	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 || stops[0].Trigger != models.TriggerAuto {
		t.Fatalf("expected immediate auto stop after resume, got %v", stops)
	}
}

func TestMotor_SafetyLockout_BlocksRestartUntilCleared(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStart, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-20 * time.Minute),
	})
	// Low sump forces a safety stop and a lockout.
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 22, f.now.Add(-3*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("low sump reading: %v", err)
	}

	// Sump recovers, top is low, but the rest period has not elapsed.
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 70, f.now.Add(-2*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("recovered sump reading: %v", err)
	}
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 10, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}
	if len(f.events.byType(models.EventStart)) != 1 { // only the seeded one
		t.Fatalf("lockout must block restart before the rest period elapses")
	}

	// After the rest period the lockout clears and a start goes through.
	f.now = f.now.Add(16 * time.Minute)
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 10, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading after rest: %v", err)
	}
	if len(f.events.byType(models.EventStart)) != 2 {
		t.Fatalf("expected restart after lockout cleared")
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateRunning {
		t.Fatalf("expected running after lockout cleared, got %q", st.State)
	}
}

func TestMotor_FloatSwitchBlocksStart(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 60, f.now.Add(-2*time.Second), boolPtr(false))); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 10, f.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Fatalf("float switch off must block auto start")
	}

	// A device without a float switch is not blocked by it.
	g := newMotorFixture(t)
	if err := g.svc.OnReading(ctx, "sump-2", sumpReading("sump-2", 60, g.now.Add(-2*time.Second), nil)); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := g.svc.OnReading(ctx, "sump-2", topReading("top-2", 10, g.now.Add(-time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}
	if len(g.queue.enqueued) != 1 {
		t.Fatalf("device without float switch should auto start")
	}
}

func TestMotor_HydratesFromAuditTrailAndReadings(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	f.devices.topForSump["sump-1"] = "top-1"
	f.events.events = append(f.events.events, models.MotorEvent{
		DeviceID: "sump-1", EventType: models.EventStart, Trigger: models.TriggerAuto,
		OccurredAt: f.now.Add(-10 * time.Minute),
	})
	f.tele.latest["sump-1"] = &models.TelemetryReading{
		DeviceID: "sump-1", TankType: models.TankSump, LevelPercentage: 55, FloatSwitch: boolPtr(true),
	}
	f.tele.latest["top-1"] = &models.TelemetryReading{
		DeviceID: "top-1", TankType: models.TankTop, LevelPercentage: 42,
	}

	st, err := f.svc.GetState(ctx, "sump-1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.State != models.StateRunning || !st.MotorRunning {
		t.Fatalf("expected running after hydration, got %+v", st)
	}
	if st.SumpLevel != 55 || st.TopLevel != 42 {
		t.Fatalf("hydrated levels wrong: %+v", st)
	}
}

func TestMotor_DeviceReportedMotorStateWins(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	// Server thinks the pump is off; the device says the relay is on and the
	// sump is below the floor. A safety stop must be issued.
	r := sumpReading("sump-1", 22, f.now.Add(-time.Second), boolPtr(true))
	r.MotorRunning = boolPtr(true)
	if err := f.svc.OnReading(ctx, "sump-1", r); err != nil {
		t.Fatalf("reading: %v", err)
	}

	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 || stops[0].Trigger != models.TriggerSafety {
		t.Fatalf("expected safety stop from device-reported running state, got %v", stops)
	}
}

func TestMotor_StaleMotorStatusReportDiscarded(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	r := sumpReading("sump-1", 60, f.now.Add(-time.Minute), boolPtr(true))
	r.MotorRunning = boolPtr(true)
	if err := f.svc.OnReading(ctx, "sump-1", r); err != nil {
		t.Fatalf("reading: %v", err)
	}

	// A retried status report from before the reading above must not win.
	if err := f.svc.SyncMotorRunning(ctx, "sump-1", false, f.now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("stale sync: %v", err)
	}
	st, err := f.svc.GetState(ctx, "sump-1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !st.MotorRunning {
		t.Fatalf("stale status report overwrote fresher running state: %+v", st)
	}

	// A report newer than anything processed applies normally.
	if err := f.svc.SyncMotorRunning(ctx, "sump-1", false, f.now.Add(-30*time.Second)); err != nil {
		t.Fatalf("fresh sync: %v", err)
	}
	st, _ = f.svc.GetState(ctx, "sump-1")
	if st.MotorRunning {
		t.Fatalf("fresh status report not applied: %+v", st)
	}
}

func TestMotor_SafetyStopWinsWhenStartConditionsAlsoHold(t *testing.T) {
	f := newMotorFixture(t)
	ctx := context.Background()

	r := sumpReading("sump-1", 60, f.now.Add(-10*time.Second), boolPtr(true))
	r.MotorRunning = boolPtr(true)
	if err := f.svc.OnReading(ctx, "sump-1", r); err != nil {
		t.Fatalf("sump reading: %v", err)
	}
	if err := f.svc.OnReading(ctx, "sump-1", topReading("top-1", 10, f.now.Add(-8*time.Second))); err != nil {
		t.Fatalf("top reading: %v", err)
	}

	// Top is below the start threshold and the sump drops below the floor in
	// the same evaluation: the stop must fire and no start may follow.
	if err := f.svc.OnReading(ctx, "sump-1", sumpReading("sump-1", 22, f.now.Add(-5*time.Second), boolPtr(true))); err != nil {
		t.Fatalf("low sump reading: %v", err)
	}

	stops := f.events.byType(models.EventStop)
	if len(stops) != 1 || stops[0].Trigger != models.TriggerSafety {
		t.Fatalf("expected exactly one safety stop, got %v", stops)
	}
	if starts := f.events.byType(models.EventStart); len(starts) != 0 {
		t.Fatalf("start issued despite sump below floor: %v", starts)
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0].Type != models.CommandMotorStop {
		t.Fatalf("expected a single motor_stop command, got %v", f.queue.enqueued)
	}
	st, _ := f.svc.GetState(ctx, "sump-1")
	if st.State != models.StateSafetyLockout {
		t.Fatalf("expected safety lockout, got %+v", st)
	}
}
