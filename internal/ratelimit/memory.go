package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter counts requests per client in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// window is one client's counter and the moment it resets.
type window struct {
	Count      int
	Expiration int64
}

// Memory is a thread-safe in-process limiter. Counters are not shared
// between replicas; use Redis for that.
type Memory struct {
	limit  int
	period time.Duration
	now    func() time.Time

	items map[string]window
	mu    sync.Mutex
}

var _ Limiter = (*Memory)(nil)

func NewMemory(limit int, period time.Duration) *Memory {
	return &Memory{
		limit:  limit,
		period: period,
		now:    time.Now,
		items:  make(map[string]window),
	}
}

// Allow counts one request. A limit of zero or less disables limiting.
func (m *Memory) Allow(_ context.Context, client string) (bool, error) {
	if m.limit <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UnixNano()
	w, found := m.items[client]
	if !found || now > w.Expiration {
		w = window{Expiration: now + int64(m.period)}
	}
	w.Count++
	m.items[client] = w

	return w.Count <= m.limit, nil
}

// Cleanup removes expired windows.
func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UnixNano()
	for k, v := range m.items {
		if now > v.Expiration {
			delete(m.items, k)
		}
	}
}

// RunCleanup calls Cleanup every period until ctx ends.
func (m *Memory) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
