package handlers

import (
	"sonoff_server/internal/gateway"
	"sonoff_server/internal/logger"
	"sonoff_server/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const defaultWSPath = "/api/ws"

// Options carries the HTTP-facing settings from config.
type Options struct {
	// MultiUser puts /devices and /users behind a bearer token and enables /auth.
	MultiUser bool
	// WSPath is where devices open their WebSocket.
	WSPath string
	// ServerIP and WSPort are what /dispatch/device hands to devices.
	ServerIP string
	WSPort   string
}

// Handler wires HTTP layer to services, the device gateway and logging.
type Handler struct {
	services *service.Service
	gateway  *gateway.Gateway
	opts     Options
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, gw *gateway.Gateway, opts Options, log *logger.Logger) *Handler {
	if opts.WSPath == "" {
		opts.WSPath = defaultWSPath
	}
	return &Handler{services: services, gateway: gw, opts: opts, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/", h.root)
	router.GET("/health", h.health)

	// Device facing endpoints, never behind auth.
	router.POST("/dispatch/device", h.dispatchDevice)
	router.GET(h.opts.WSPath, h.deviceWS)

	var guard []gin.HandlerFunc
	if h.opts.MultiUser {
		h.registerAuthRoutes(router)
		guard = append(guard, h.requireUser)
		router.Group("/users", guard...).GET("/me", h.currentUser)
	}

	h.registerDeviceRoutes(router.Group("/devices", guard...))

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerDeviceRoutes(devices *gin.RouterGroup) {
	devices.GET("", h.listDevices)
	devices.POST("", h.createDevice)
	devices.GET("/:id", h.getDevice)
	devices.PATCH("/:id", h.updateDevice)
	devices.DELETE("/:id", h.deleteDevice)

	devices.GET("/:id/events", h.getDeviceEvents)

	timers := devices.Group("/:id/timers")
	{
		timers.GET("", h.listTimers)
		timers.POST("", h.createTimer)
		timers.GET("/:timerId", h.getTimer)
		timers.PATCH("/:timerId", h.updateTimer)
		timers.DELETE("/:timerId", h.deleteTimer)
	}
}
