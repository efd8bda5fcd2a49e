package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// entry holds a stored value with its expiration time.
type entry[V any] struct {
	expiresAt time.Time // zero value = never expires
	value     V
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process store guarded by a readers-writer lock.
//
// Every operation on a single key is atomic: a reader never observes a
// partially written value. No ordering is promised between writers of
// independent keys.
type Memory[V any] struct {
	items   map[string]entry[V]
	opts    *memoryOptions
	onEvict func(key string, value V)
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewMemory creates a new in-memory store.
//
// Example:
//
//	attrs := cache.NewMemory[any](
//	    cache.WithDefaultTTL(-1),
//	    cache.WithCleanupInterval(0),
//	)
//	defer attrs.Close()
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory[V]{
		items: make(map[string]entry[V]),
		opts:  o,
		done:  make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// SetEvictCallback sets a function called whenever an entry leaves the store:
// replacement by Set, deletion, expiration, and clearing.
func (m *Memory[V]) SetEvictCallback(fn func(key string, value V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get retrieves a value by key.
// Returns ErrNotFound if the key does not exist or has expired.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		var zero V
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Set stores a value with the given TTL.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.opts.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if old, ok := m.items[key]; ok && m.onEvict != nil {
		m.onEvict(key, old.value)
	}
	m.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.remove(key)
	return nil
}

// Has checks whether a key exists and has not expired.
func (m *Memory[V]) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	return ok && !e.expired(time.Now()), nil
}

// Keys returns a sorted snapshot of the live keys.
func (m *Memory[V]) Keys() []string {
	now := time.Now()

	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k, e := range m.items {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Len returns the number of stored entries, including expired ones not yet collected.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Clear removes all entries.
func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.onEvict != nil {
		for k, e := range m.items {
			m.onEvict(k, e.value)
		}
	}
	m.items = make(map[string]entry[V])
	return nil
}

// Close stops the background janitor and rejects further writes.
// Reads keep working on the remaining entries. Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

func (m *Memory[V]) deleteExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.items {
		if e.expired(now) {
			m.remove(k)
		}
	}
}

// remove deletes key and fires the eviction callback.
// Caller must hold the write lock.
func (m *Memory[V]) remove(key string) {
	e, ok := m.items[key]
	if !ok {
		return
	}
	delete(m.items, key)
	if m.onEvict != nil {
		m.onEvict(key, e.value)
	}
}

var _ Cache[any] = (*Memory[any])(nil)
