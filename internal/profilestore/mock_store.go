// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows handler tests to run without SQLite

package profilestore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu    sync.RWMutex
	users map[string]*UserRecord // keyed by lowercased email

	// FailWith, when set, is returned by every operation.
	FailWith error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{users: make(map[string]*UserRecord)}
}

func (m *MockStore) CreateUser(ctx context.Context, rec *UserRecord) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(rec.Email)
	if _, ok := m.users[email]; ok {
		return ErrDuplicate
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Email = email

	copied := *rec
	m.users[email] = &copied
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, email string) (*UserRecord, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MockStore) UpdateUser(ctx context.Context, email string, patch UserPatch) (*UserRecord, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.University != nil {
		rec.University = *patch.University
	}
	if patch.Address != nil {
		rec.Address = *patch.Address
	}
	if patch.Phone != nil {
		rec.Phone = *patch.Phone
	}
	rec.UpdatedAt = time.Now().UTC()

	copied := *rec
	return &copied, nil
}

func (m *MockStore) Close() error { return nil }
