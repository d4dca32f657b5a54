package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of question/answer exchanges kept per session.
const DefaultMaxHistory = 2

const (
	DefaultSessionIdleTTL = time.Hour
	DefaultMaxSessions    = 10000
)

// SessionLimits bounds how many sessions are kept and for how long.
type SessionLimits struct {
	// IdleTTL drops sessions unused for longer than this. Zero keeps idle sessions.
	IdleTTL time.Duration
	// MaxSessions caps live sessions; the least recently used is evicted first. Zero
	// means no cap.
	MaxSessions int
}

type session struct {
	messages []domain.Message
	lastUsed time.Time
}

// SessionManager keeps capped, in-memory conversation histories. It is created once at
// startup and shared by every request handler.
type SessionManager struct {
	mu         sync.Mutex
	maxHistory int
	limits     SessionLimits
	sessions   map[string]*session
	lastSweep  time.Time
	newID      func() string
	now        func() time.Time
}

// NewSessionManager creates a SessionManager keeping the last maxHistory exchanges
// (2*maxHistory messages) of every session, with the default limits.
func NewSessionManager(maxHistory int) *SessionManager {
	return NewSessionManagerWithLimits(maxHistory, SessionLimits{
		IdleTTL:     DefaultSessionIdleTTL,
		MaxSessions: DefaultMaxSessions,
	})
}

func NewSessionManagerWithLimits(maxHistory int, limits SessionLimits) *SessionManager {
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &SessionManager{
		maxHistory: maxHistory,
		limits:     limits,
		sessions:   make(map[string]*session),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// CreateSession registers an empty session and returns its ID.
func (m *SessionManager) CreateSession() string {
	id := m.newID()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(id)
	return id
}

// AddExchange appends a user question and the assistant's answer atomically, creating
// the session if needed.
func (m *SessionManager) AddExchange(sessionID, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(sessionID,
		domain.Message{Role: domain.RoleUser, Content: question},
		domain.Message{Role: domain.RoleAssistant, Content: answer},
	)
}

func (m *SessionManager) appendLocked(sessionID string, msgs ...domain.Message) {
	s := m.touchLocked(sessionID)
	history := append(s.messages, msgs...)
	if limit := 2 * m.maxHistory; len(history) > limit {
		trimmed := make([]domain.Message, limit)
		copy(trimmed, history[len(history)-limit:])
		history = trimmed
	}
	s.messages = history
}

// touchLocked returns the live session, creating it, and marks it used. It then
// enforces the limits, never evicting the session just touched.
func (m *SessionManager) touchLocked(sessionID string) *session {
	now := m.now()
	s, ok := m.lookupLocked(sessionID, now)
	if !ok {
		s = &session{}
		m.sessions[sessionID] = s
	}
	s.lastUsed = now
	m.evictLocked(now, sessionID)
	return s
}

// lookupLocked finds a session, dropping it when it has been idle past the TTL.
func (m *SessionManager) lookupLocked(sessionID string, now time.Time) (*session, bool) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if m.expired(s, now) {
		delete(m.sessions, sessionID)
		return nil, false
	}
	return s, true
}

func (m *SessionManager) expired(s *session, now time.Time) bool {
	return m.limits.IdleTTL > 0 && now.Sub(s.lastUsed) > m.limits.IdleTTL
}

func (m *SessionManager) evictLocked(now time.Time, keep string) {
	if ttl := m.limits.IdleTTL; ttl > 0 && now.Sub(m.lastSweep) >= min(ttl, time.Minute) {
		m.lastSweep = now
		for id, s := range m.sessions {
			if id != keep && m.expired(s, now) {
				delete(m.sessions, id)
			}
		}
	}

	for m.limits.MaxSessions > 0 && len(m.sessions) > m.limits.MaxSessions {
		oldestID := ""
		var oldest time.Time
		for id, s := range m.sessions {
			if id == keep {
				continue
			}
			if oldestID == "" || s.lastUsed.Before(oldest) {
				oldestID, oldest = id, s.lastUsed
			}
		}
		if oldestID == "" {
			return
		}
		delete(m.sessions, oldestID)
	}
}

// History returns a copy of the session's messages, oldest first.
func (m *SessionManager) History(sessionID string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookupLocked(sessionID, m.now())
	if !ok {
		return []domain.Message{}
	}
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// FormattedHistory renders the history as "User: ..." / "Assistant: ..." lines, or ""
// when the session has no messages.
func (m *SessionManager) FormattedHistory(sessionID string) string {
	return FormatHistory(m.History(sessionID))
}

// Clear empties a session's history. Clearing an unknown or expired session is an error.
func (m *SessionManager) Clear(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookupLocked(sessionID, m.now()); !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	m.touchLocked(sessionID).messages = nil
	return nil
}

func (m *SessionManager) exists(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookupLocked(sessionID, m.now())
	return ok
}

func (m *SessionManager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// FormatHistory renders messages the way they are fed to the model.
func FormatHistory(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case domain.RoleUser:
			lines = append(lines, "User: "+msg.Content)
		case domain.RoleAssistant:
			lines = append(lines, "Assistant: "+msg.Content)
		default:
			lines = append(lines, string(msg.Role)+": "+msg.Content)
		}
	}
	return strings.Join(lines, "\n")
}
