package gateway

import (
	"sync"
	"time"
)

type result struct {
	ack *Ack
	err error
}

type pendingCommand struct {
	sequence string
	payload  command
	done     chan result // buffered, receives exactly one result
	timer    *time.Timer
}

// pendingTable correlates outbound commands with device acks. Whoever removes
// an entry from the map owns its resolution, so every command resolves once.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingCommand
	closed  bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingCommand)}
}

// add registers a command and arms its timeout.
func (t *pendingTable) add(seq string, payload command, timeout time.Duration) (<-chan result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrConnectionClosed
	}
	p := &pendingCommand{
		sequence: seq,
		payload:  payload,
		done:     make(chan result, 1),
	}
	t.entries[seq] = p
	p.timer = time.AfterFunc(timeout, func() {
		t.complete(seq, result{err: ErrSyncTimeout})
	})
	return p.done, nil
}

// complete resolves the command registered under seq. It returns false when
// no such command is pending (already resolved, timed out, or never sent).
func (t *pendingTable) complete(seq string, res result) bool {
	t.mu.Lock()
	p, ok := t.entries[seq]
	if ok {
		delete(t.entries, seq)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	p.done <- res
	return true
}

// closeAll rejects every pending command with err and refuses new ones.
func (t *pendingTable) closeAll(err error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*pendingCommand)
	t.closed = true
	t.mu.Unlock()

	for _, p := range entries {
		p.timer.Stop()
		p.done <- result{err: err}
	}
	return len(entries)
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
