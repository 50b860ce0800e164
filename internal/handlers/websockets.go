package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
)

// Devices connect from the LAN without an Origin header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: writeBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// @Summary      Device WebSocket
// @Description  Upgrades to the device protocol (register, query, update, date and command acks).
// @Tags         device
// @Success      101
// @Router       /api/ws [get]
func (h *Handler) deviceWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err, "remote", c.ClientIP())
		}
		return
	}
	// Serve blocks until the device goes away and closes the connection itself.
	h.gateway.Serve(conn)
}
