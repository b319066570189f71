// Package storetest provides an in-process store.AtomicStore for tests.
package storetest

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded AtomicStore with a controllable clock. Set Err
// to make every call fail.
type Memory struct {
	mu      sync.Mutex
	now     time.Time
	windows map[string][]time.Time
	markers map[string]time.Time
	Err     error
	Calls   int
}

func NewMemory(now time.Time) *Memory {
	return &Memory{
		now:     now,
		windows: make(map[string][]time.Time),
		markers: make(map[string]time.Time),
	}
}

func (m *Memory) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Memory) SetError(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

func (m *Memory) purge(key string, window time.Duration) []time.Time {
	cutoff := m.now.Add(-window)
	kept := m.windows[key][:0]
	for _, t := range m.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.windows[key] = kept
	return kept
}

func (m *Memory) SlidingWindowAdmit(_ context.Context, key string, window time.Duration, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return false, m.Err
	}

	entries := m.purge(key, window)
	if len(entries) >= limit {
		return false, nil
	}
	m.windows[key] = append(entries, m.now)
	return true, nil
}

func (m *Memory) WindowCount(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.purge(key, window))), nil
}

func (m *Memory) SetIfAbsentWithTTL(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return false, 0, m.Err
	}

	if expires, ok := m.markers[key]; ok && m.now.Before(expires) {
		return false, expires.Sub(m.now), nil
	}
	m.markers[key] = m.now.Add(ttl)
	return true, 0, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	delete(m.windows, key)
	delete(m.markers, key)
	return nil
}

// Keys returns every key currently holding window entries or a marker.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.windows)+len(m.markers))
	for k, v := range m.windows {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	for k := range m.markers {
		keys = append(keys, k)
	}
	return keys
}
