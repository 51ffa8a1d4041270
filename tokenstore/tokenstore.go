// Package tokenstore provides TokenStore implementations for the credential
// pair: an in-memory store for single-process use and a file-backed store
// that survives restarts and is safe to share across processes.
package tokenstore

import (
	"sync"

	vistream "github.com/vistream/vistream-go"
)

// Memory is a mutex-guarded in-memory TokenStore.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// compile-time check
var _ vistream.TokenStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Put stores value under key.
func (m *Memory) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Clear removes all keys.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}
