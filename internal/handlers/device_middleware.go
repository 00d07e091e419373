package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tankguard/internal/models"
	"tankguard/internal/service"
)

// Request headers carrying device credentials.
const (
	headerDeviceID  = "x-device-id"
	headerAPIKey    = "x-api-key"
	headerTimestamp = "x-timestamp"
	headerSignature = "x-signature"
)

// Gin context keys set by the device middleware.
const (
	ctxDevice  = "device"
	ctxRawBody = "rawBody"
)

// maxDeviceBodyBytes bounds device payloads; sensor reports are tiny.
const maxDeviceBodyBytes = 16 << 10 // 16 KB

// versionProbe extracts only protocol_version so the gate runs before any
// business parsing.
type versionProbe struct {
	ProtocolVersion *int `json:"protocol_version"`
}

// deviceAuthMiddleware runs the protocol gate and the signature verifier in
// the order the pipeline defines: gate first (fail fast on incompatible
// firmware), then authentication, then the handler parses the body it gets
// from the context.
func (h *Handler) deviceAuthMiddleware(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDeviceBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	if len(rawBody) > 0 {
		var probe versionProbe
		if err := json.Unmarshal(rawBody, &probe); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed JSON body"})
			return
		}
		if err := h.services.Protocol.CheckVersion(probe.ProtocolVersion); err != nil {
			h.rejectVersion(c, err)
			return
		}
	}

	deviceID := c.GetHeader(headerDeviceID)
	apiKey := c.GetHeader(headerAPIKey)
	timestamp := c.GetHeader(headerTimestamp)
	signature := c.GetHeader(headerSignature)

	ctx, cancel := reqCtx(c)
	defer cancel()

	dev, err := h.services.DeviceAuth.Verify(ctx, deviceID, apiKey, rawBody, timestamp, signature)
	if err != nil {
		if service.IsAuthErr(err) {
			if h.log != nil {
				h.log.Infow("device_auth_rejected", "device_id", deviceID, "err", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "device_id": deviceID})
			return
		}
		if h.log != nil {
			h.log.Errorw("device_auth_failed", "device_id", deviceID, "err", err)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication unavailable"})
		return
	}

	c.Set(ctxDevice, dev)
	c.Set(ctxRawBody, rawBody)
	c.Next()
}

// rejectVersion maps gate errors to their wire statuses: 426 asks the device
// to upgrade, 400 covers missing/too-new.
func (h *Handler) rejectVersion(c *gin.Context, err error) {
	minV, maxV := h.services.Protocol.Window()
	status := http.StatusBadRequest
	if errors.Is(err, service.ErrVersionTooOld) {
		status = http.StatusUpgradeRequired
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":       err.Error(),
		"min_version": minV,
		"max_version": maxV,
	})
}

// authedDevice returns the device the middleware authenticated.
func authedDevice(c *gin.Context) *models.Device {
	return c.MustGet(ctxDevice).(*models.Device)
}

// bindDeviceBody unmarshals the raw body captured by the middleware.
func (h *Handler) bindDeviceBody(c *gin.Context, dst any) bool {
	rawBody := c.MustGet(ctxRawBody).([]byte)
	if err := json.Unmarshal(rawBody, dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return false
	}
	return true
}
