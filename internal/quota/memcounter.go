package quota

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// MemCounter is an in-memory QuotaCounter for tests and redis-less
// development. It is safe for concurrent use.
type MemCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
}

// NewMemCounter creates an empty MemCounter.
func NewMemCounter() *MemCounter {
	return &MemCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
	}
}

// IncrBelow increments the counter at key if below limit.
func (m *MemCounter) IncrBelow(_ context.Context, key string, limit int, ttl time.Duration) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire(key)

	current := m.counts[key]
	if current >= int64(limit) {
		return current, false, nil
	}

	current++
	m.counts[key] = current
	if current == 1 {
		m.expires[key] = time.Now().Add(ttl)
	}
	return current, true, nil
}

// DecrFloor decrements the counter at key, never below zero.
func (m *MemCounter) DecrFloor(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire(key)

	current := m.counts[key]
	if current <= 0 {
		return 0, nil
	}
	current--
	m.counts[key] = current
	return current, nil
}

// expire drops a key whose TTL has elapsed. Caller must hold the mutex.
func (m *MemCounter) expire(key string) {
	if exp, ok := m.expires[key]; ok && time.Now().After(exp) {
		delete(m.counts, key)
		delete(m.expires, key)
	}
}

// Compile-time interface check.
var _ domain.QuotaCounter = (*MemCounter)(nil)
