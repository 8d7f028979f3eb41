package auth

import "sync"

// MockStore is an in-memory CredentialStore for tests. StoreError, when
// set, is returned by every Store call.
type MockStore struct {
	mu         sync.Mutex
	accounts   map[string]ProxyAccount
	StoreError error
}

func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]ProxyAccount)}
}

// NewMockManager returns a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(account *ProxyAccount) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

func (m *MockStore) Retrieve(username string) (*ProxyAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MockStore) List() ([]*ProxyAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ProxyAccount, 0, len(m.accounts))
	for _, account := range m.accounts {
		account := account
		out = append(out, &account)
	}
	return out, nil
}

func (m *MockStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
