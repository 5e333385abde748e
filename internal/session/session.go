package session

import "sync"

// TokenKey is the fixed key the bearer token is stored under.
const TokenKey = "authToken"

// Store persists the admin bearer token between runs. There is no expiry
// tracking: callers clear the token when the backend answers 401/403.
type Store interface {
	Save(token string) error
	Load() (string, bool, error)
	Clear() error
}

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) Load() (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != "", nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
