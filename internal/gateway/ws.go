package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	maxMsgSize = 1 << 12 // 4 KB
)

// wsTransport adapts a gorilla connection to Transport. gorilla allows one
// concurrent writer, so data frames go through writeMu; pings use
// WriteControl, which may run alongside them.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) WriteJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed.Load() {
		return ErrConnectionNotOpen
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Open() bool {
	return !t.closed.Load()
}

func (t *wsTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}

func (t *wsTransport) ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// heartbeat pings the device every interval. A pong must arrive between two
// pings, otherwise the connection is closed, which ends the read loop.
func (g *Gateway) heartbeat(t *wsTransport, alive *atomic.Bool, stop <-chan struct{}) {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !alive.Swap(false) {
				g.log.Warnw("ws_pong_missing", "interval", g.pingInterval)
				_ = t.Close()
				return
			}
			if err := t.ping(); err != nil {
				g.log.Infow("ws_ping_failed", "err", err)
				_ = t.Close()
				return
			}
		}
	}
}
