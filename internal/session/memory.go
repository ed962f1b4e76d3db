package session

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between instances. Stored entries are never
// mutated in place; SetGuilds swaps in a new record.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	clock    clockwork.Clock
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		clock:    clock,
	}
}

// Put stores a copy of s.
func (m *MemoryStore) Put(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[s.Token]; ok && !existing.IsExpired(m.clock.Now()) {
		return ErrExists
	}
	m.sessions[s.Token] = s.Clone()
	return nil
}

// Get returns a copy of the session. Expired entries are dropped on read.
func (m *MemoryStore) Get(_ context.Context, token string) (*models.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if s.IsExpired(m.clock.Now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[token]; ok && cur == s {
			delete(m.sessions, token)
		}
		m.mu.Unlock()
		return nil, ErrExpired
	}

	return s.Clone(), nil
}

// SetGuilds replaces the cached guild list of a live session.
func (m *MemoryStore) SetGuilds(_ context.Context, token string, guilds []models.Guild) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	if s.IsExpired(m.clock.Now()) {
		delete(m.sessions, token)
		return ErrExpired
	}

	updated := *s
	updated.Guilds = make([]models.Guild, len(guilds))
	copy(updated.Guilds, guilds)
	m.sessions[token] = &updated
	return nil
}

// Delete removes the session.
func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

// Expire drops every expired session.
func (m *MemoryStore) Expire(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for token, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions, expired or not.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
