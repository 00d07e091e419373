package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tankguard/internal/models"
	"tankguard/internal/service"
)

// sensorDataRequest mirrors the firmware telemetry payload. Scalar fields
// that must be present even when zero are pointers so absence is detectable.
type sensorDataRequest struct {
	TankType        string   `json:"tank_type"`
	LevelPercentage *float64 `json:"level_percentage"`
	LevelLiters     *float64 `json:"level_liters"`
	SensorHealth    string   `json:"sensor_health"`
	MotorRunning    *bool    `json:"motor_running"`
	ManualOverride  *bool    `json:"manual_override"`
	AutoModeEnabled *bool    `json:"auto_mode_enabled"`
	FloatSwitch     *bool    `json:"float_switch"`
	SignalStrength  *int     `json:"signal_strength"`
	ProtocolVersion *int     `json:"protocol_version"`
	Timestamp       int64    `json:"timestamp"`
}

type motorStatusRequest struct {
	MotorRunning    *bool `json:"motor_running"`
	ProtocolVersion *int  `json:"protocol_version"`
	Timestamp       int64 `json:"timestamp"`
}

type systemAlertRequest struct {
	AlertType       string `json:"alert_type"`
	Severity        string `json:"severity"`
	Message         string `json:"message"`
	ProtocolVersion *int   `json:"protocol_version"`
}

type commandAckRequest struct {
	CommandID string `json:"command_id"`
}

// effectiveVersion treats an absent protocol_version as v1; the gate has
// already rejected absence when the configured minimum demands it.
func effectiveVersion(p *int) int {
	if p == nil {
		return 1
	}
	return *p
}

// respondServiceError maps service-layer errors onto the wire contract.
func (h *Handler) respondServiceError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, service.ErrSafetyRejected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCommandNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		// Storage or other transient failure: generic 500, details in logs;
		// the device retries per its offline-queue policy.
		if h.log != nil {
			h.log.Errorw(logKey, append([]interface{}{"err", err}, kv...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// @Summary      Ingest sensor telemetry
// @Tags         esp32
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      426  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/esp32/sensor-data [post]
func (h *Handler) sensorData(c *gin.Context) {
	dev := authedDevice(c)
	var req sensorDataRequest
	if !h.bindDeviceBody(c, &req) {
		return
	}
	if req.LevelPercentage == nil || req.LevelLiters == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level_percentage and level_liters are required"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	reading, err := h.services.Ingestion.Ingest(ctx, dev.ID, service.ReadingInput{
		TankType:        req.TankType,
		LevelPercentage: *req.LevelPercentage,
		LevelLiters:     *req.LevelLiters,
		SensorHealth:    req.SensorHealth,
		MotorRunning:    req.MotorRunning,
		ManualOverride:  req.ManualOverride,
		AutoModeEnabled: req.AutoModeEnabled,
		FloatSwitch:     req.FloatSwitch,
		SignalStrength:  req.SignalStrength,
		ProtocolVersion: effectiveVersion(req.ProtocolVersion),
		Timestamp:       req.Timestamp,
	})
	if err != nil {
		h.respondServiceError(c, err, "sensor_data_ingest_failed", "device_id", dev.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "reading_at": reading.ReadingAt})
}

// @Summary      Report motor status
// @Tags         esp32
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/esp32/motor-status [post]
func (h *Handler) motorStatus(c *gin.Context) {
	dev := authedDevice(c)
	var req motorStatusRequest
	if !h.bindDeviceBody(c, &req) {
		return
	}
	if req.MotorRunning == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "motor_running is required"})
		return
	}
	if dev.TankType != models.TankSump {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device does not control a pump"})
		return
	}

	reportedAt := time.Unix(req.Timestamp, 0).UTC()
	if req.Timestamp <= 0 {
		reportedAt = time.Now().UTC()
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.services.Motor.SyncMotorRunning(ctx, dev.ID, *req.MotorRunning, reportedAt); err != nil {
		h.respondServiceError(c, err, "motor_status_sync_failed", "device_id", dev.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Heartbeat
// @Description  Liveness signal; the response carries any pending commands.
// @Tags         esp32
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/esp32/heartbeat [post]
func (h *Handler) heartbeat(c *gin.Context) {
	dev := authedDevice(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	cmds, err := h.services.Commands.Poll(ctx, dev.ID)
	if err != nil {
		h.respondServiceError(c, err, "heartbeat_poll_failed", "device_id", dev.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"server_time": time.Now().UTC().Unix(),
		"commands":    cmds,
	})
}

// @Summary      Report a system alert
// @Tags         esp32
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/esp32/system-alert [post]
func (h *Handler) systemAlert(c *gin.Context) {
	dev := authedDevice(c)
	var req systemAlertRequest
	if !h.bindDeviceBody(c, &req) {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	alert, err := h.services.Ingestion.RecordAlert(ctx, dev.ID, service.AlertInput{
		AlertType: req.AlertType,
		Severity:  req.Severity,
		Message:   req.Message,
	})
	if err != nil {
		h.respondServiceError(c, err, "system_alert_failed", "device_id", dev.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "alert_id": alert.ID})
}

// @Summary      Diagnostic ping
// @Description  API-key-only liveness check; no HMAC, no body.
// @Tags         esp32
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/esp32/ping [get]
func (h *Handler) ping(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	dev, err := h.services.DeviceAuth.VerifyAPIKey(ctx, c.GetHeader(headerDeviceID), c.GetHeader(headerAPIKey))
	if err != nil {
		if service.IsAuthErr(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.respondServiceError(c, err, "ping_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "device_id": dev.ID, "server_time": time.Now().UTC().Unix()})
}

// @Summary      Poll pending commands
// @Tags         esp32
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/esp32/commands [get]
func (h *Handler) pollCommands(c *gin.Context) {
	dev := authedDevice(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	cmds, err := h.services.Commands.Poll(ctx, dev.ID)
	if err != nil {
		h.respondServiceError(c, err, "commands_poll_failed", "device_id", dev.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(cmds), "commands": cmds})
}

// @Summary      Acknowledge a command
// @Description  Idempotent: duplicate acknowledgements return the prior outcome.
// @Tags         esp32
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/esp32/command-ack [post]
func (h *Handler) ackCommand(c *gin.Context) {
	dev := authedDevice(c)
	var req commandAckRequest
	if !h.bindDeviceBody(c, &req) {
		return
	}
	if req.CommandID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command_id is required"})
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	result, err := h.services.Commands.Acknowledge(ctx, req.CommandID)
	if err != nil {
		h.respondServiceError(c, err, "command_ack_failed", "device_id", dev.ID, "command_id", req.CommandID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(result)})
}
