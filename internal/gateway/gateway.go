package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sonoff_server/internal/logger"

	"github.com/gorilla/websocket"
)

// DefaultPingInterval is the keepalive period on device connections.
const DefaultPingInterval = 30 * time.Second

// Options tune a Gateway. Zero values fall back to the defaults.
type Options struct {
	CommandTimeout time.Duration
	PingInterval   time.Duration
	Policy         RegistrationPolicy
}

// Gateway accepts device connections and runs one session per connection.
type Gateway struct {
	registry       *Registry
	store          DeviceStore
	events         EventLog
	policy         RegistrationPolicy
	log            *logger.Logger
	commandTimeout time.Duration
	pingInterval   time.Duration

	mu      sync.Mutex
	conns   map[*wsTransport]struct{}
	closing bool
	serving sync.WaitGroup
}

// ErrGatewayClosed is returned for work arriving after Shutdown.
var ErrGatewayClosed = errors.New("gateway is shut down")

func New(registry *Registry, store DeviceStore, events EventLog, log *logger.Logger, opts Options) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Policy == nil {
		opts.Policy = AutoProvision{}
	}
	return &Gateway{
		registry:       registry,
		store:          store,
		events:         events,
		policy:         opts.Policy,
		log:            log,
		commandTimeout: opts.CommandTimeout,
		pingInterval:   opts.PingInterval,
		conns:          make(map[*wsTransport]struct{}),
	}
}

func (g *Gateway) Registry() *Registry { return g.registry }

// NewRouter creates a session over t together with its frame router.
func (g *Gateway) NewRouter(t Transport) *Router {
	s := NewSession(t, g.commandTimeout, g.log)
	return &Router{
		session:  s,
		registry: g.registry,
		store:    g.store,
		policy:   g.policy,
		events:   g.events,
		log:      s.log,
		now:      time.Now,
	}
}

// Session returns the session the router serves.
func (r *Router) Session() *Session { return r.session }

// Serve runs the read loop for an upgraded connection and blocks until it
// closes. On return the session has been closed and unbound.
func (g *Gateway) Serve(conn *websocket.Conn) {
	t := newWSTransport(conn)
	if err := g.track(t); err != nil {
		g.log.Infow("ws_refused", "remote", conn.RemoteAddr().String(), "err", err)
		_ = t.Close()
		return
	}
	defer g.untrack(t)

	router := g.NewRouter(t)
	router.log.Infow("ws_connected", "remote", conn.RemoteAddr().String())

	var alive atomic.Bool
	alive.Store(true)
	conn.SetReadLimit(maxMsgSize)
	conn.SetPongHandler(func(string) error {
		alive.Store(true)
		return nil
	})

	stop := make(chan struct{})
	go g.heartbeat(t, &alive, stop)
	defer func() {
		close(stop)
		router.OnClose()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			router.log.Infow("ws_read_closed", "err", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		router.HandleMessage(data)
	}
}

// Shutdown closes every device connection and waits until their sessions
// have been torn down, so commands still waiting for an ack fail with
// ErrConnectionClosed. Connections arriving afterwards are refused.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closing = true
	conns := make([]*wsTransport, 0, len(g.conns))
	for t := range g.conns {
		conns = append(conns, t)
	}
	g.mu.Unlock()

	g.log.Infow("gateway_shutdown", "connections", len(conns))
	for _, t := range conns {
		_ = t.Close()
	}

	done := make(chan struct{})
	go func() {
		g.serving.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) track(t *wsTransport) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return ErrGatewayClosed
	}
	g.conns[t] = struct{}{}
	g.serving.Add(1)
	return nil
}

func (g *Gateway) untrack(t *wsTransport) {
	g.mu.Lock()
	delete(g.conns, t)
	g.mu.Unlock()
	g.serving.Done()
}
