package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tankguard/internal/service"
)

type provisionDeviceRequest struct {
	ID       string `json:"id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	TankType string `json:"tank_type" binding:"required"`
}

type pairDeviceRequest struct {
	TopDeviceID string `json:"top_device_id" binding:"required"`
}

// @Summary      Provision a device
// @Description  Creates a device and returns its credentials. The HMAC
// @Description  secret is returned only in this response.
// @Security     ApiKeyAuth
// @Tags         devices
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices [post]
func (h *Handler) provisionDevice(c *gin.Context) {
	var req provisionDeviceRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	dev, err := h.services.Devices.Provision(ctx, service.ProvisionParams{
		ID:       req.ID,
		Name:     req.Name,
		TankType: req.TankType,
	})
	if err != nil {
		h.respondServiceError(c, err, "device_provision_failed", "device_id", req.ID)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"device":      dev,
		"hmac_secret": dev.HMACSecret,
	})
}

// @Summary      List devices
// @Security     ApiKeyAuth
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	devs, err := h.services.Devices.List(ctx)
	if err != nil {
		h.respondServiceError(c, err, "device_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(devs), "devices": devs})
}

// @Summary      Pair a sump device with a top tank device
// @Security     ApiKeyAuth
// @Tags         devices
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/{id}/pair [post]
func (h *Handler) pairDevice(c *gin.Context) {
	sumpID := c.Param("id")
	var req pairDeviceRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.services.Devices.Pair(ctx, sumpID, req.TopDeviceID); err != nil {
		h.respondServiceError(c, err, "device_pair_failed", "sump_id", sumpID, "top_id", req.TopDeviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Deactivate a device
// @Security     ApiKeyAuth
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/{id}/deactivate [post]
func (h *Handler) deactivateDevice(c *gin.Context) {
	deviceID := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.services.Devices.Deactivate(ctx, deviceID); err != nil {
		h.respondServiceError(c, err, "device_deactivate_failed", "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Manually start the motor
// @Description  Refused when starting would be unsafe; the refusal is audited.
// @Security     ApiKeyAuth
// @Tags         motor
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/motor/{id}/start [post]
func (h *Handler) manualStart(c *gin.Context) {
	sumpID := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.services.Motor.ManualStart(ctx, sumpID); err != nil {
		h.respondServiceError(c, err, "manual_start_failed", "device_id", sumpID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Manually stop the motor
// @Security     ApiKeyAuth
// @Tags         motor
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/motor/{id}/stop [post]
func (h *Handler) manualStop(c *gin.Context) {
	sumpID := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.services.Motor.ManualStop(ctx, sumpID); err != nil {
		h.respondServiceError(c, err, "manual_stop_failed", "device_id", sumpID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Return the motor to automatic control
// @Security     ApiKeyAuth
// @Tags         motor
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/motor/{id}/resume-auto [post]
func (h *Handler) resumeAuto(c *gin.Context) {
	sumpID := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.services.Motor.ResumeAuto(ctx, sumpID); err != nil {
		h.respondServiceError(c, err, "resume_auto_failed", "device_id", sumpID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Current motor state
// @Security     ApiKeyAuth
// @Tags         motor
// @Produce      json
// @Success      200  {object}  models.MotorState
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/motor/{id}/state [get]
func (h *Handler) motorState(c *gin.Context) {
	sumpID := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.services.Motor.GetState(ctx, sumpID)
	if err != nil {
		h.respondServiceError(c, err, "motor_state_failed", "device_id", sumpID)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Recent system alerts
// @Security     ApiKeyAuth
// @Tags         alerts
// @Produce      json
// @Param        limit  query  int  false  "Max alerts to return (default 50)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/alerts [get]
func (h *Handler) listAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	ctx, cancel := reqCtx(c)
	defer cancel()

	alerts, err := h.services.Ingestion.ListAlerts(ctx, limit)
	if err != nil {
		h.respondServiceError(c, err, "alert_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "alerts": alerts})
}

// @Summary      Pending commands for a device
// @Description  Read-only view; does not bump retry counters.
// @Security     ApiKeyAuth
// @Tags         commands
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/commands/{id} [get]
func (h *Handler) pendingCommands(c *gin.Context) {
	deviceID := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	cmds, err := h.services.Commands.Pending(ctx, deviceID)
	if err != nil {
		h.respondServiceError(c, err, "pending_commands_failed", "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(cmds), "commands": cmds})
}
