// Package store provides the in-memory session registry shared by transports.
//
// Sessions live for the process lifetime only; there is no durable backend.
// Each entry carries its own mutex so transports can serialize turns per
// session while processing different sessions in parallel.
package store

import (
	"log/slog"
	"sync"

	"github.com/evihealth/healthnav/internal/flow"
	"github.com/google/uuid"
)

// Entry pairs a session with the mutex that serializes its turns. Callers
// must hold the lock for the full duration of a ProcessTurn call.
type Entry struct {
	mu      sync.Mutex
	Session *flow.Session
}

// Lock acquires the per-session turn lock.
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the per-session turn lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// SessionStore is a concurrency-safe registry of chat sessions keyed by an
// opaque session identifier.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Entry
}

// NewSessionStore creates an empty session registry.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Entry)}
}

// Get returns the entry for id, if present.
func (s *SessionStore) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

// GetOrCreate returns the entry for id, creating a fresh session under a new
// UUID when id is empty or unknown. The effective session ID is returned.
func (s *SessionStore) GetOrCreate(id string) (*Entry, string) {
	if id != "" {
		if entry, ok := s.Get(id); ok {
			return entry, id
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	newID := uuid.NewString()
	entry := &Entry{Session: flow.NewSession(newID)}
	s.sessions[newID] = entry
	slog.Debug("SessionStore.GetOrCreate: created session", "session", newID, "totalSessions", len(s.sessions))
	return entry, newID
}

// Count returns the number of registered sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
