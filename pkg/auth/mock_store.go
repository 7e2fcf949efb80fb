package auth

import (
	"sync"

	"linkreach/pkg/models"
)

// MockStore is an in-memory CredentialStore with error injection for tests
type MockStore struct {
	mu    sync.RWMutex
	creds map[string]models.Credential

	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{creds: make(map[string]models.Credential)}
}

// NewMockManager creates a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(cred *models.Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Account == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Account] = *cred
	return nil
}

func (m *MockStore) Retrieve(account string) (*models.Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[account]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

func (m *MockStore) List() ([]*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Credential, 0, len(m.creds))
	for _, cred := range m.creds {
		c := cred
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockStore) Delete(account string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[account]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, account)
	return nil
}

func (m *MockStore) Exists(account string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[account]
	return ok
}

// Count returns the number of stored credentials
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
