package mocks

import (
	"context"
	"sync"
	"time"
)

// MockCache is a mock implementation of cache.Cache for testing
type MockCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	fields map[string]map[string][]byte
	// versions counts deletes per key
	versions map[string]uint64

	// For tracking calls in tests
	GetCalls    []string
	SetCalls    []SetCall
	DeleteCalls [][]string

	// Error injection
	GetErr    error
	SetErr    error
	DeleteErr error
}

// SetCall records parameters passed to Set
type SetCall struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// NewMockCache creates a new MockCache
func NewMockCache() *MockCache {
	return &MockCache{
		data:        make(map[string][]byte),
		fields:      make(map[string]map[string][]byte),
		versions:    make(map[string]uint64),
		GetCalls:    make([]string, 0),
		SetCalls:    make([]SetCall, 0),
		DeleteCalls: make([][]string, 0),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, key)
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, TTL: ttl})
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, keys)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for _, k := range keys {
		delete(m.data, k)
		delete(m.fields, k)
		m.versions[k]++
	}
	return nil
}

func (m *MockCache) Version(ctx context.Context, key string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return 0, m.GetErr
	}
	return m.versions[key], nil
}

// SetIfVersion is recorded in SetCalls only when the value is stored
func (m *MockCache) SetIfVersion(ctx context.Context, key string, version uint64, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return false, m.SetErr
	}
	if m.versions[key] != version {
		return false, nil
	}
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, TTL: ttl})
	m.data[key] = value
	return true, nil
}

func (m *MockCache) HashGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	v, ok := m.fields[key][field]
	return v, ok, nil
}

func (m *MockCache) HashSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.fields[key] == nil {
		m.fields[key] = make(map[string][]byte)
	}
	m.fields[key][field] = value
	return nil
}

// Has reports whether key currently holds a value
func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// Put seeds a value without recording a call
func (m *MockCache) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// DeletedKeys flattens every key passed to Delete
func (m *MockCache) DeletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, call := range m.DeleteCalls {
		out = append(out, call...)
	}
	return out
}
