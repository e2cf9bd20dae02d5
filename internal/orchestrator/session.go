// Package orchestrator runs the conversation loop: model completion,
// tool dispatch and re-invocation until the model produces a plain
// answer, bounded by a fixed round-trip limit.
package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinical-assistant-server/internal/llm"
)

// Session holds one conversation's history. Turns within a session are
// serialized by the session lock; separate sessions proceed concurrently.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	messages   []llm.Message
	lastActive time.Time
	// medications seen in this session's retrieved records, used for
	// proactive interaction alerts on later turns.
	knownMedications []string
}

// SessionStore is an in-memory session registry.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session with the given ID, creating it first if
// needed. An empty ID always creates a fresh session.
func (s *SessionStore) GetOrCreate(id string) *Session {
	if id != "" {
		s.mu.RLock()
		session, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return session
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	} else if session, ok := s.sessions[id]; ok {
		return session
	}
	session := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		lastActive: time.Now(),
	}
	s.sessions[id] = session
	return session
}

// Clear drops a session's history. It reports whether the session existed.
func (s *SessionStore) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PruneIdle removes sessions idle longer than maxIdle and returns how
// many were removed.
func (s *SessionStore) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.lastActive.Before(cutoff)
		session.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

// rememberMedications merges newly observed medications into the session,
// deduplicated case-insensitively.
func (s *Session) rememberMedications(drugs []string, normalize func(string) string) {
	seen := make(map[string]bool, len(s.knownMedications))
	for _, known := range s.knownMedications {
		seen[normalize(known)] = true
	}
	for _, drug := range drugs {
		key := normalize(drug)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		s.knownMedications = append(s.knownMedications, drug)
	}
}
