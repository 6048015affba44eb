package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/seu-repo/energy-sentinel/internal/ports"
)

// MockCache is a mock implementation of Cache interface
type MockCache struct {
	mu                   sync.Mutex
	data                 map[string]string
	GetFunc              func(ctx context.Context, key string) (string, error)
	SetFunc              func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc            func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DeleteFunc           func(ctx context.Context, key string) error
	CompareAndDeleteFunc func(ctx context.Context, key, value string) (bool, error)
	PingFunc             func() error
	CloseFunc            func() error
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return "", ports.ErrCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = toString(value)
	return nil
}

func (m *MockCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if m.SetNXFunc != nil {
		return m.SetNXFunc(ctx, key, value, expiration)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = toString(value)
	return true, nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCache) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if m.CompareAndDeleteFunc != nil {
		return m.CompareAndDeleteFunc(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.data[key]; !ok || current != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

// Has reports whether key is currently stored.
func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *MockCache) Ping() error {
	if m.PingFunc != nil {
		return m.PingFunc()
	}
	return nil
}

func (m *MockCache) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}
