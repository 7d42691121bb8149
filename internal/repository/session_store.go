package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"rag-chat/internal/domain"
)

// SessionStore guarda el historial de cada sesión en memoria, solo por agregado.
type SessionStore interface {
	GetOrCreate(sessionID string) domain.Session
	AppendUserMessage(sessionID, content string) domain.Message
	AppendAssistantMessage(sessionID, content string) domain.Message
	Clear(sessionID string) bool
	RecentHistory(sessionID string, maxMessages int) []domain.Message
}

// sessionEntry serializa los agregados de una sola sesión.
type sessionEntry struct {
	mu       sync.Mutex
	messages []domain.Message
	last     time.Time
}

// MemorySessionStore implementa SessionStore con un mapa protegido por RWMutex
// y un mutex por sesión. Sesiones distintas no compiten entre sí.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) lookup(sessionID string) *sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *MemorySessionStore) getOrCreateEntry(sessionID string) *sessionEntry {
	if e := s.lookup(sessionID); e != nil {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &sessionEntry{}
		s.sessions[sessionID] = e
	}
	return e
}

func (s *MemorySessionStore) GetOrCreate(sessionID string) domain.Session {
	e := s.getOrCreateEntry(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Session{
		ID:       sessionID,
		Messages: copyMessages(e.messages),
	}
}

func (s *MemorySessionStore) AppendUserMessage(sessionID, content string) domain.Message {
	return s.append(sessionID, content, true)
}

func (s *MemorySessionStore) AppendAssistantMessage(sessionID, content string) domain.Message {
	return s.append(sessionID, content, false)
}

func (s *MemorySessionStore) append(sessionID, content string, isUser bool) domain.Message {
	e := s.getOrCreateEntry(sessionID)

	prefix := "ai_"
	if isUser {
		prefix = "user_"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Los timestamps dentro de una sesión son estrictamente crecientes.
	ts := s.now().UTC()
	if !ts.After(e.last) {
		ts = e.last.Add(time.Microsecond)
	}
	e.last = ts

	msg := domain.Message{
		ID:        prefix + uuid.NewString(),
		Content:   content,
		CreatedAt: ts,
		IsUser:    isUser,
	}
	e.messages = append(e.messages, msg)
	return msg
}

// Clear vacía una sesión existente conservando su id. Devuelve false si el id nunca se vio.
func (s *MemorySessionStore) Clear(sessionID string) bool {
	e := s.lookup(sessionID)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = nil
	return true
}

// RecentHistory devuelve los últimos maxMessages mensajes en orden cronológico.
// No crea la sesión si no existe.
func (s *MemorySessionStore) RecentHistory(sessionID string, maxMessages int) []domain.Message {
	if maxMessages <= 0 {
		return []domain.Message{}
	}
	e := s.lookup(sessionID)
	if e == nil {
		return []domain.Message{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.messages
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	return copyMessages(msgs)
}

func copyMessages(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}
