package cache

import (
	"context"
	"sync"
	"time"
)

type item struct {
	val string
	exp time.Time
}

// Memory is an in-process Store used when Redis is unavailable.
type Memory struct {
	mu    sync.RWMutex
	items map[string]item
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]item)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok || time.Now().After(v.exp) {
		return "", ErrMiss
	}
	return v.val, nil
}

func (m *Memory) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = item{val: value, exp: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
