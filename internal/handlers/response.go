package handlers

import (
	"errors"
	"net/http"

	"sonoff_server/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errInternal        = "internal error"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondServiceError maps service errors to status codes. Unknown errors are
// logged under logKey and answered with 500.
func (h *Handler) respondServiceError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound), errors.Is(err, service.ErrTimerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeviceExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidDevice),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidTimer),
		errors.Is(err, service.ErrInvalidTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errInternal, logKey, err, kv...)
	}
}

// respondStored answers a mutation that touched device state. When the
// change was stored but the device did not take it, the stored entity is
// still returned under key, with stored=true and a gateway status code.
func (h *Handler) respondStored(c *gin.Context, key string, v any, err error, logKey string) {
	var syncErr *service.SyncError
	if errors.As(err, &syncErr) {
		if h.log != nil {
			h.log.Warnw(logKey, "deviceid", syncErr.DeviceID, "err", syncErr.Err)
		}
		c.JSON(syncStatus(syncErr), gin.H{
			"error":  syncErr.Error(),
			"stored": true,
			key:      v,
		})
		return
	}
	if err != nil {
		h.respondServiceError(c, err, logKey)
		return
	}
	c.JSON(http.StatusOK, v)
}

// syncStatus: 503 offline, 502 rejected by the device, 504 timeout or lost connection.
func syncStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrDeviceOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrDeviceRejected):
		return http.StatusBadGateway
	default:
		return http.StatusGatewayTimeout
	}
}

// @Summary      Root
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       / [get]
func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": statusOK})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": statusOK}
	if h.gateway != nil {
		resp["connected_devices"] = h.gateway.Registry().Len()
	}
	c.JSON(http.StatusOK, resp)
}
