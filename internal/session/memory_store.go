package session

import (
	"context"
	"sync"
	"time"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

type memoryEntry struct {
	data      TokenData
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Used when REDIS_URL is unset; sessions
// do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	refresh map[string]memoryEntry
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		refresh: make(map[string]memoryEntry),
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryStore) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !expiresAt.After(now) {
		expiresAt = now.Add(defaultRefreshTTL)
	}
	m.refresh[tokenHash] = memoryEntry{
		data:      TokenData{UserID: user.ID, DisplayName: user.DisplayName, Role: user.Role, CreatedAt: now.UTC()},
		expiresAt: expiresAt,
	}
	return nil
}

func (m *MemoryStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.refresh[tokenHash]
	if !ok {
		return store.User{}, ErrNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.refresh, tokenHash)
		return store.User{}, ErrNotFound
	}
	return entry.data.user(), nil
}

func (m *MemoryStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *MemoryStore) RevokeAccessToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expiresAt
	now := m.now()
	for id, exp := range m.revoked {
		if !now.Before(exp) {
			delete(m.revoked, id)
		}
	}
	return nil
}

func (m *MemoryStore) IsAccessRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[jti]
	return ok && m.now().Before(exp), nil
}
