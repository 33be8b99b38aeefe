package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used when Redis is not configured.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	data    []byte
	expires time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem), now: time.Now}
}

func (m *Memory) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{data: data}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *Memory) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	item, ok := m.items[key]
	if ok && !item.expires.IsZero() && m.now().After(item.expires) {
		delete(m.items, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(item.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}
