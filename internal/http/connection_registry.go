package http

import "sync"

// ConnectionRegistry asocia cada conexión websocket con la sesión fijada al conectar.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{sessions: make(map[string]string)}
}

func (r *ConnectionRegistry) Bind(connID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = sessionID
}

func (r *ConnectionRegistry) SessionFor(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.sessions[connID]
	return sessionID, ok
}

func (r *ConnectionRegistry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
