package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DispatchResponse tells a device where to open its WebSocket.
type DispatchResponse struct {
	Error  int    `json:"error" example:"0"`
	Reason string `json:"reason" example:"ok"`
	IP     string `json:"IP" example:"192.168.1.2"`
	Port   string `json:"port" example:"8080"`
}

// @Summary      Device dispatch
// @Description  Called by devices on boot to learn the WebSocket address.
// @Tags         device
// @Accept       json
// @Produce      json
// @Success      200  {object}  DispatchResponse
// @Router       /dispatch/device [post]
func (h *Handler) dispatchDevice(c *gin.Context) {
	if h.log != nil {
		var body map[string]any
		_ = c.ShouldBindJSON(&body)
		h.log.Infow("device_dispatch", "remote", c.ClientIP(), "deviceid", body["deviceid"], "model", body["model"])
	}
	c.JSON(http.StatusOK, DispatchResponse{
		Error:  0,
		Reason: statusOK,
		IP:     h.opts.ServerIP,
		Port:   h.opts.WSPort,
	})
}
