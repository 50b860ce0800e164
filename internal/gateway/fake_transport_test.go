package gateway

import (
	"encoding/json"
	"errors"
	"sync"
)

// fakeTransport records every frame written to it.
type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	writes   [][]byte
	writeErr error
	closed   int
	onWrite  func(raw []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{open: true}
}

func (f *fakeTransport) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return errors.New("closed")
	}
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	f.writes = append(f.writes, b)
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(b)
	}
	return nil
}

func (f *fakeTransport) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closed++
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// last decodes the most recent frame into a generic map.
func (f *fakeTransport) last() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(f.writes[len(f.writes)-1], &m)
	return m
}

func decodeCommand(raw []byte) command {
	var c command
	_ = json.Unmarshal(raw, &c)
	return c
}
