package mocks

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// MockCache is a mock implementation of Cache interface
type MockCache struct {
	Data               map[string]string
	GetFunc            func(ctx context.Context, key string) (string, error)
	SetFunc            func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeleteFunc         func(ctx context.Context, key string) error
	DeleteByPrefixFunc func(ctx context.Context, prefix string) error
	PingFunc           func() error
	CloseFunc          func() error
}

func NewMockCache() *MockCache {
	return &MockCache{
		Data: make(map[string]string),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return m.Data[key], nil
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	switch v := value.(type) {
	case string:
		m.Data[key] = v
	case []byte:
		m.Data[key] = string(v)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		m.Data[key] = string(data)
	}
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	delete(m.Data, key)
	return nil
}

func (m *MockCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	if m.DeleteByPrefixFunc != nil {
		return m.DeleteByPrefixFunc(ctx, prefix)
	}
	for k := range m.Data {
		if strings.HasPrefix(k, prefix) {
			delete(m.Data, k)
		}
	}
	return nil
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
