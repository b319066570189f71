package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"replybot/pkg/metrics"
)

// LoadFunc fetches the authoritative value for key.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Loader is a read-through TTL cache. Concurrent misses on the same key
// share a single call to the backing LoadFunc. Errors are never cached.
type Loader[V any] struct {
	name  string
	ttl   time.Duration
	load  LoadFunc[V]
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[V]
	// generation is bumped by invalidation so that a load which started
	// before it does not repopulate the entry with stale data.
	generation map[string]uint64
	epoch      uint64
}

func NewLoader[V any](name string, ttl time.Duration, load LoadFunc[V]) *Loader[V] {
	return &Loader[V]{
		name:       name,
		ttl:        ttl,
		load:       load,
		now:        time.Now,
		entries:    make(map[string]entry[V]),
		generation: make(map[string]uint64),
	}
}

// SetClock replaces the time source. Intended for tests.
func (l *Loader[V]) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Loader[V]) Get(ctx context.Context, key string) (V, error) {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	if ok && l.now().Before(e.expiresAt) {
		metrics.IncCacheRequest(l.name, true)
		return e.value, nil
	}
	metrics.IncCacheRequest(l.name, false)

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		gen := l.generationOf(key)

		value, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		if l.generation[key]+l.epoch == gen {
			l.entries[key] = entry[V]{value: value, expiresAt: l.now().Add(l.ttl)}
		}
		l.mu.Unlock()

		return value, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%s cache load %q: %w", l.name, key, err)
	}

	return v.(V), nil
}

func (l *Loader[V]) generationOf(key string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation[key] + l.epoch
}

// Invalidate drops key so the next Get reloads it.
func (l *Loader[V]) Invalidate(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.generation[key]++
	l.mu.Unlock()
	l.group.Forget(key)
}

// InvalidateAll drops every entry.
func (l *Loader[V]) InvalidateAll() {
	l.mu.Lock()
	l.entries = make(map[string]entry[V])
	l.epoch++
	l.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included.
func (l *Loader[V]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
