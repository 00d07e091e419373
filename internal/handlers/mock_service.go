package handlers

import (
	"context"
	"net/http"
	"time"

	"tankguard/internal/models"
	"tankguard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDeviceAuth struct {
	device *models.Device
	err    error

	lastDeviceID  string
	lastRawBody   []byte
	lastTimestamp string
	lastSignature string
}

func (m *mockDeviceAuth) Verify(ctx context.Context, deviceID, apiKey string, rawBody []byte, ts, sig string) (*models.Device, error) {
	m.lastDeviceID = deviceID
	m.lastRawBody = rawBody
	m.lastTimestamp = ts
	m.lastSignature = sig
	return m.device, m.err
}
func (m *mockDeviceAuth) VerifyAPIKey(ctx context.Context, deviceID, apiKey string) (*models.Device, error) {
	m.lastDeviceID = deviceID
	return m.device, m.err
}

type mockProtocol struct {
	err          error
	min, max     int
	lastVersion  *int
	checkedCount int
}

func (m *mockProtocol) CheckVersion(version *int) error {
	m.checkedCount++
	m.lastVersion = version
	return m.err
}
func (m *mockProtocol) Window() (int, int) { return m.min, m.max }

type mockIngestion struct {
	reading    *models.TelemetryReading
	ingestErr  error
	alert      *models.SystemAlert
	alertErr   error
	alertList  []models.SystemAlert
	listErr    error
	lastInput  service.ReadingInput
	lastDevice string
	lastLimit  int
}

func (m *mockIngestion) Ingest(ctx context.Context, deviceID string, in service.ReadingInput) (*models.TelemetryReading, error) {
	m.lastDevice = deviceID
	m.lastInput = in
	return m.reading, m.ingestErr
}
func (m *mockIngestion) RecordAlert(ctx context.Context, deviceID string, in service.AlertInput) (*models.SystemAlert, error) {
	m.lastDevice = deviceID
	return m.alert, m.alertErr
}
func (m *mockIngestion) ListAlerts(ctx context.Context, limit int) ([]models.SystemAlert, error) {
	m.lastLimit = limit
	return m.alertList, m.listErr
}

type mockMotor struct {
	state       models.MotorState
	stateErr    error
	startErr    error
	stopErr     error
	resumeErr   error
	syncErr     error
	startCalls  int
	stopCalls   int
	resumeCalls int
	lastSync    bool
	lastSumpID  string
}

func (m *mockMotor) OnReading(ctx context.Context, sumpID string, r models.TelemetryReading) error {
	return nil
}
func (m *mockMotor) SyncMotorRunning(ctx context.Context, sumpID string, running bool, reportedAt time.Time) error {
	m.lastSumpID = sumpID
	m.lastSync = running
	return m.syncErr
}
func (m *mockMotor) ManualStart(ctx context.Context, sumpID string) error {
	m.startCalls++
	m.lastSumpID = sumpID
	return m.startErr
}
func (m *mockMotor) ManualStop(ctx context.Context, sumpID string) error {
	m.stopCalls++
	m.lastSumpID = sumpID
	return m.stopErr
}
func (m *mockMotor) ResumeAuto(ctx context.Context, sumpID string) error {
	m.resumeCalls++
	m.lastSumpID = sumpID
	return m.resumeErr
}
func (m *mockMotor) GetState(ctx context.Context, sumpID string) (models.MotorState, error) {
	m.lastSumpID = sumpID
	return m.state, m.stateErr
}

type mockQueue struct {
	polled     []models.DeviceCommand
	pollErr    error
	ackResult  service.AckResult
	ackErr     error
	lastAckID  string
	lastDevice string
}

func (m *mockQueue) Enqueue(ctx context.Context, deviceID, cmdType string, payload any, ttl time.Duration) (*models.DeviceCommand, error) {
	return nil, nil
}
func (m *mockQueue) Poll(ctx context.Context, deviceID string) ([]models.DeviceCommand, error) {
	m.lastDevice = deviceID
	return m.polled, m.pollErr
}
func (m *mockQueue) Pending(ctx context.Context, deviceID string) ([]models.DeviceCommand, error) {
	m.lastDevice = deviceID
	return m.polled, m.pollErr
}
func (m *mockQueue) Acknowledge(ctx context.Context, commandID string) (service.AckResult, error) {
	m.lastAckID = commandID
	return m.ackResult, m.ackErr
}
func (m *mockQueue) Run(ctx context.Context, tick time.Duration) {}

type mockEventLog struct {
	resp       []models.MotorEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.MotorEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockDeviceAdmin struct {
	device       *models.Device
	provisionErr error
	listResp     []models.Device
	listErr      error
	pairErr      error
	deactErr     error

	lastPair   [2]string
	lastDeact  string
	lastParams service.ProvisionParams
}

func (m *mockDeviceAdmin) Provision(ctx context.Context, p service.ProvisionParams) (*models.Device, error) {
	m.lastParams = p
	return m.device, m.provisionErr
}
func (m *mockDeviceAdmin) List(ctx context.Context) ([]models.Device, error) {
	return m.listResp, m.listErr
}
func (m *mockDeviceAdmin) Pair(ctx context.Context, sumpID, topID string) error {
	m.lastPair = [2]string{sumpID, topID}
	return m.pairErr
}
func (m *mockDeviceAdmin) Deactivate(ctx context.Context, deviceID string) error {
	m.lastDeact = deviceID
	return m.deactErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func deviceHeaders() http.Header {
	h := http.Header{}
	h.Set(headerDeviceID, "sump-1")
	h.Set(headerAPIKey, "key-1")
	h.Set(headerTimestamp, "1700000000")
	h.Set(headerSignature, "sig")
	return h
}

func applyHeaders(r *http.Request, hdr http.Header) {
	for k, vv := range hdr {
		for _, v := range vv {
			r.Header.Add(k, v)
		}
	}
}
