package gateway

import "sync"

// Registry maps a device id to its live session. It is not persisted:
// after a restart every device has to register again before it can be synced.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Set binds s to deviceID and returns the session it replaced, if any.
// The replaced session is not closed; its pending commands are left to time out.
func (r *Registry) Set(deviceID string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[deviceID]
	r.sessions[deviceID] = s
	return prev
}

func (r *Registry) Get(deviceID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[deviceID]
	return s, ok
}

// Remove drops the entry for deviceID and reports whether one existed.
func (r *Registry) Remove(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[deviceID]; !ok {
		return false
	}
	delete(r.sessions, deviceID)
	return true
}

// RemoveSession drops the entry for deviceID only while it still points at s,
// so a closing session never evicts the one that replaced it.
func (r *Registry) RemoveSession(deviceID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[deviceID]; !ok || cur != s {
		return false
	}
	delete(r.sessions, deviceID)
	return true
}

// IsOnline reports whether deviceID has a session whose transport is open.
func (r *Registry) IsOnline(deviceID string) bool {
	s, ok := r.Get(deviceID)
	return ok && s.IsAlive()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
