package gateway

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"sonoff_server/internal/logger"

	"github.com/google/uuid"
)

// DefaultCommandTimeout bounds how long SendCommand waits for an ack.
const DefaultCommandTimeout = 2 * time.Second

var (
	ErrConnectionNotOpen = errors.New("connection is not open")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrSyncTimeout       = errors.New("sync timeout")
)

// Transport is the duplex channel to one device.
// WriteJSON must be safe for concurrent use.
type Transport interface {
	WriteJSON(v any) error
	Open() bool
	Close() error
}

// Session is the protocol state of one device connection.
type Session struct {
	apiKey    string
	transport Transport
	timeout   time.Duration
	log       *logger.Logger
	seq       *sequencer
	pending   *pendingTable

	mu       sync.RWMutex
	deviceID string // empty until register succeeds

	closeOnce sync.Once
}

// NewSession wraps t. A zero timeout means DefaultCommandTimeout.
func NewSession(t Transport, timeout time.Duration, log *logger.Logger) *Session {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	apiKey := uuid.NewString()
	return &Session{
		apiKey:    apiKey,
		transport: t,
		timeout:   timeout,
		log:       log.With("apikey", apiKey),
		seq:       newSequencer(),
		pending:   newPendingTable(),
	}
}

func (s *Session) APIKey() string { return s.apiKey }

// DeviceID returns the bound device id, or "" before registration.
func (s *Session) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

func (s *Session) bind(deviceID string) {
	s.mu.Lock()
	s.deviceID = deviceID
	s.mu.Unlock()
}

// IsAlive reports whether the transport is still open.
func (s *Session) IsAlive() bool {
	return s.transport.Open()
}

// SendCommand pushes params to the device as an update command and blocks
// until the device acks it, the timeout elapses, or the session closes.
func (s *Session) SendCommand(params any) (*Ack, error) {
	if !s.IsAlive() {
		return nil, ErrConnectionNotOpen
	}
	msg := command{
		APIKey:    s.apiKey,
		Action:    actionUpdate,
		DeviceID:  s.DeviceID(),
		Params:    params,
		UserAgent: appAgent,
		From:      appAgent,
		Sequence:  s.seq.next(),
		TS:        0,
	}
	wait, err := s.pending.add(msg.Sequence, msg, s.timeout)
	if err != nil {
		return nil, err
	}
	s.log.Infow("ws_command_sent", "deviceid", msg.DeviceID, "sequence", msg.Sequence)
	if err := s.transport.WriteJSON(msg); err != nil {
		s.pending.complete(msg.Sequence, result{err: fmt.Errorf("write command: %w", err)})
	}
	res := <-wait
	if res.err != nil {
		s.log.Warnw("ws_command_failed", "deviceid", msg.DeviceID, "sequence", msg.Sequence, "err", res.err)
	}
	return res.ack, res.err
}

// OnAck resolves the command acked by the device. Acks for unknown or
// already resolved sequences are logged and ignored.
func (s *Session) OnAck(ack Ack) bool {
	if !s.pending.complete(ack.Sequence, result{ack: &ack}) {
		s.log.Warnw("ws_ack_unknown_sequence", "deviceid", s.DeviceID(), "sequence", ack.Sequence)
		return false
	}
	s.log.Infow("ws_command_acked", "deviceid", s.DeviceID(), "sequence", ack.Sequence, "error", ack.Error)
	return true
}

// Close shuts the transport and rejects all pending commands with
// ErrConnectionClosed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.transport.Close()
		if n := s.pending.closeAll(ErrConnectionClosed); n > 0 {
			s.log.Warnw("ws_pending_rejected", "deviceid", s.DeviceID(), "count", n)
		}
	})
}

// write sends a reply frame to the device.
func (s *Session) write(v any) {
	if err := s.transport.WriteJSON(v); err != nil {
		s.log.Warnw("ws_write_failed", "deviceid", s.DeviceID(), "err", err)
	}
}
