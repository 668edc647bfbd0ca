package flow

import (
	"context"
	"sync"
)

// Store keeps at most one active Session per user. Get returns (nil, nil)
// when the user has no session. Set overwrites unconditionally.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Set(ctx context.Context, userID int64, s *Session) error
	Clear(ctx context.Context, userID int64) error
}

// MemoryStore is the in-process Store used by default and in tests. Sessions
// live until cleared; abandoned ones survive until process restart, so
// deployments that care should use the Redis store with its TTL instead.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID], nil
}

func (m *MemoryStore) Set(ctx context.Context, userID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
