// Package session keeps per-session conversation history in memory.
// History lives for the lifetime of the process; there is no persistence
// across restarts and no eviction. Each session carries its own lock so
// callers can hold a whole read-generate-append cycle atomically without
// blocking other sessions.
package session

import "sync"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleSystem marks persona/system instructions.
	RoleSystem Role = "system"
	// RoleUser marks end-user messages.
	RoleUser Role = "user"
	// RoleAssistant marks model replies.
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a session's history.
type Turn struct {
	Role    Role
	Content string
}

// Session holds the ordered history of one conversation. The embedded
// mutex guards Turns; callers that need atomicity across several
// operations (read history, call the model, append both sides) should
// Lock the session themselves and use the *Locked variants.
type Session struct {
	mu    sync.Mutex
	turns []Turn
}

// Lock acquires the session's lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Turns returns a copy of the session history in insertion order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnsLocked()
}

// TurnsLocked returns a copy of the history. The caller must hold the lock.
func (s *Session) TurnsLocked() []Turn {
	return s.turnsLocked()
}

func (s *Session) turnsLocked() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append adds a turn to the end of the session history.
func (s *Session) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
}

// AppendLocked adds a turn. The caller must hold the lock.
func (s *Session) AppendLocked(role Role, content string) {
	s.turns = append(s.turns, Turn{Role: role, Content: content})
}

// Len reports the number of turns in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// LenLocked reports the number of turns. The caller must hold the lock.
func (s *Session) LenLocked() int {
	return len(s.turns)
}

// Store maps session IDs to their conversation history. Sessions are
// created lazily on first access and never evicted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it if absent.
// An ID is looked up verbatim: "abc" and "ABC" are distinct sessions.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s = &Session{}
	st.sessions[id] = s
	return s
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
