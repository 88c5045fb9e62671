package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local store with TTL semantics matching the Redis
// driver. It backs tests and the development mode; it is not meant for
// multi-instance deployments.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem

	// now is swappable so TTL behavior is testable without sleeping.
	now func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

var _ KV = (*Memory)(nil)

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if m.expired(item) {
		m.evict(key)
		return "", false, nil
	}
	return item.value, true, nil
}

func (m *Memory) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if m.expired(item) {
		m.evict(key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Close() error {
	return nil
}

// Len reports the number of live keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, item := range m.items {
		if !m.expired(item) {
			n++
		}
	}
	return n
}

func (m *Memory) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && m.now().After(item.expiresAt)
}

func (m *Memory) evict(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}
