package cache

import (
	"sync"
	"time"
)

type entry struct {
	val []byte
	exp time.Time
}

// memory is the bounded in-process tier. When full, expired entries are
// swept first and then the entry closest to expiry is evicted.
type memory struct {
	mu    sync.Mutex
	items map[string]entry
	max   int
	now   func() time.Time
}

func newMemory(max int) *memory {
	if max < 1 {
		max = 1
	}
	return &memory{items: make(map[string]entry), max: max, now: time.Now}
}

func (m *memory) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.exp) {
		delete(m.items, key)
		return nil, false
	}
	return e.val, true
}

func (m *memory) set(key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.max {
		m.sweep(now)
		if len(m.items) >= m.max {
			m.evictSoonest()
		}
	}
	m.items[key] = entry{val: val, exp: now.Add(ttl)}
}

func (m *memory) sweep(now time.Time) {
	for k, e := range m.items {
		if !now.Before(e.exp) {
			delete(m.items, k)
		}
	}
}

func (m *memory) evictSoonest() {
	var (
		victim string
		soon   time.Time
		found  bool
	)
	for k, e := range m.items {
		if !found || e.exp.Before(soon) {
			victim, soon, found = k, e.exp, true
		}
	}
	if found {
		delete(m.items, victim)
	}
}

func (m *memory) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
