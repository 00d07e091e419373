package handlers

import (
	"tankguard/internal/logger"
	"tankguard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Operator auth endpoints
	h.registerAuthRoutes(router)

	// Device-facing API (HMAC-signed)
	h.registerDeviceRoutes(router)

	// Operator API (JWT-protected)
	h.registerAPIRoutes(router)

	// Live motor state over WebSocket, on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerDeviceRoutes(r *gin.Engine) {
	esp := r.Group("/api/esp32")
	{
		// Diagnostic ping authenticates by api key only; no HMAC, no body.
		esp.GET("/ping", h.ping)

		signed := esp.Group("", h.deviceAuthMiddleware)
		{
			signed.POST("/sensor-data", h.sensorData)
			signed.POST("/motor-status", h.motorStatus)
			signed.POST("/heartbeat", h.heartbeat)
			signed.POST("/system-alert", h.systemAlert)
			signed.GET("/commands", h.pollCommands)
			signed.POST("/command-ack", h.ackCommand)
		}
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		devices := api.Group("/devices")
		{
			devices.POST("", h.provisionDevice)
			devices.GET("", h.listDevices)
			devices.POST("/:id/pair", h.pairDevice)
			devices.POST("/:id/deactivate", h.deactivateDevice)
		}
		motor := api.Group("/motor")
		{
			motor.POST("/:id/start", h.manualStart)
			motor.POST("/:id/stop", h.manualStop)
			motor.POST("/:id/resume-auto", h.resumeAuto)
			motor.GET("/:id/state", h.motorState)
		}
		api.GET("/logs", h.getLogs)
		api.GET("/alerts", h.listAlerts)
		api.GET("/commands/:id", h.pendingCommands)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
