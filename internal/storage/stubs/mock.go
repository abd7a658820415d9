package stubs

import (
	"context"
	"sort"
	"sync"

	"evening/internal/models"
	"evening/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for tests and local runs
type MockDB struct {
	mu            sync.RWMutex
	families      map[string]models.Family
	subscriptions map[string]models.SubscriptionStatus
	progress      map[string]map[models.ReaderKey]models.ReadingProgress
	events        map[string][]models.ReadingEvent
}

var _ storage.Storage = (*MockDB)(nil)

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		families:      make(map[string]models.Family),
		subscriptions: make(map[string]models.SubscriptionStatus),
		progress:      make(map[string]map[models.ReaderKey]models.ReadingProgress),
		events:        make(map[string][]models.ReadingEvent),
	}
}

// Initialize does nothing; the mock starts empty
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// GetFamily returns the family of an account
func (m *MockDB) GetFamily(ctx context.Context, accountID string) (models.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	family, ok := m.families[accountID]
	if !ok {
		return models.Family{}, storage.ErrNotFound
	}
	return cloneFamily(family), nil
}

// SaveFamily stores the family of an account, replacing any previous one
func (m *MockDB) SaveFamily(ctx context.Context, accountID string, family models.Family) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.families[accountID] = cloneFamily(family)
	return nil
}

// SetSubscription stores a plan for an account. Plans are managed outside the app,
// so this is only used to seed data.
func (m *MockDB) SetSubscription(accountID string, sub models.SubscriptionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscriptions[accountID] = sub
}

// GetSubscription returns the plan of an account
func (m *MockDB) GetSubscription(ctx context.Context, accountID string) (models.SubscriptionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[accountID]
	if !ok {
		return models.SubscriptionStatus{}, storage.ErrNotFound
	}
	return sub, nil
}

// LoadProgress returns a copy of all reader records of an account
func (m *MockDB) LoadProgress(ctx context.Context, accountID string) (map[models.ReaderKey]models.ReadingProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[models.ReaderKey]models.ReadingProgress, len(m.progress[accountID]))
	for k, v := range m.progress[accountID] {
		out[k] = v
	}
	return out, nil
}

// SaveProgress replaces one reader's record
func (m *MockDB) SaveProgress(ctx context.Context, accountID string, reader models.ReaderKey, progress models.ReadingProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.progress[accountID] == nil {
		m.progress[accountID] = make(map[models.ReaderKey]models.ReadingProgress)
	}
	m.progress[accountID][reader] = progress
	return nil
}

// CreateEvent appends a reading event
func (m *MockDB) CreateEvent(ctx context.Context, accountID string, event models.ReadingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[accountID] = append(m.events[accountID], event)
	return nil
}

// GetLastEvents returns the last N events of an account, newest first
func (m *MockDB) GetLastEvents(ctx context.Context, accountID string, limit int) ([]models.ReadingEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Sort events by date descending
	sortedEvents := make([]models.ReadingEvent, len(m.events[accountID]))
	copy(sortedEvents, m.events[accountID])
	sort.SliceStable(sortedEvents, func(i, j int) bool {
		return sortedEvents[i].Date.After(sortedEvents[j].Date)
	})

	if limit > len(sortedEvents) {
		limit = len(sortedEvents)
	}

	return sortedEvents[:limit], nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func cloneFamily(f models.Family) models.Family {
	f.Children = append([]models.Child(nil), f.Children...)
	f.Members = append([]models.FamilyMember(nil), f.Members...)
	return f
}
