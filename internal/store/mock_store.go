// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sestako/eunio-app-sub019/internal/settings"
	"github.com/sestako/eunio-app-sub019/internal/syncerr"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	settings   map[string]settings.Aggregate // keyed by user ID
	activeUser string
	saves      int

	// SaveErr, when set, is returned by every SaveSettings call.
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings: make(map[string]settings.Aggregate),
	}
}

// SaveSettings stores a snapshot. Aggregates are values, so the stored copy
// cannot be modified by the caller.
func (m *MockStore) SaveSettings(ctx context.Context, agg settings.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	if problems := agg.ValidationErrors(); len(problems) > 0 {
		return syncerr.ValidationErrors("settings", problems)
	}
	m.settings[agg.UserID] = agg
	m.saves++
	return nil
}

// GetSettings retrieves a snapshot by user ID.
func (m *MockStore) GetSettings(ctx context.Context, userID string) (settings.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg, ok := m.settings[userID]
	if !ok {
		return settings.Aggregate{}, ErrNotFound
	}
	return agg, nil
}

// DeleteSettings removes a snapshot.
func (m *MockStore) DeleteSettings(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.settings[userID]; !ok {
		return ErrNotFound
	}
	delete(m.settings, userID)
	return nil
}

// ListSettings returns all snapshots ordered by user ID.
func (m *MockStore) ListSettings(ctx context.Context) ([]settings.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]settings.Aggregate, 0, len(m.settings))
	for _, agg := range m.settings {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// SetActiveUser records the active user.
func (m *MockStore) SetActiveUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeUser = userID
	return nil
}

// GetActiveUser returns the active user or ErrNotFound.
func (m *MockStore) GetActiveUser(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeUser == "" {
		return "", ErrNotFound
	}
	return m.activeUser, nil
}

// Saves returns how many snapshots have been written successfully.
func (m *MockStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
