package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// MemoryStore keeps sessions in process memory. Sessions are copied on the
// way in and out so callers never share maps with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

var _ Repository = (*MemoryStore)(nil)

// GetSession implements Repository.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// SaveSession implements Repository.
func (m *MemoryStore) SaveSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session.Clone()
	return nil
}

// DeleteSession implements Repository.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// ExpiredSessions implements Repository.
func (m *MemoryStore) ExpiredSessions(_ context.Context, ttl time.Duration) ([]string, error) {
	threshold := time.Now().Add(-ttl)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(threshold) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Ping implements Repository.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Repository.
func (m *MemoryStore) Close() error { return nil }
