package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBackendUnavailable is returned when a cache is used without a backend.
var ErrBackendUnavailable = errors.New("cache backend unavailable")

// Backend stores opaque values with a time-to-live.
type Backend interface {
	// Get returns the value stored at key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryBackend is a process-local Backend.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]entry

	// NowFunc overrides the clock; nil means time.Now.
	NowFunc func() time.Time
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]entry)}
}

func (m *MemoryBackend) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now()
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(item.expires) {
		m.mu.Lock()
		if current, still := m.items[key]; still && current.expires.Equal(item.expires) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

// Set implements Backend. A non-positive ttl defaults to one minute.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.items[key] = entry{value: stored, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// JSON layers typed access over a Backend.
type JSON[T any] struct {
	backend Backend
	ttl     time.Duration
}

// NewJSON returns a JSON cache storing values for ttl.
func NewJSON[T any](backend Backend, ttl time.Duration) *JSON[T] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &JSON[T]{backend: backend, ttl: ttl}
}

// Get decodes the value at key.
func (c *JSON[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if c == nil || c.backend == nil {
		return zero, false, ErrBackendUnavailable
	}
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return value, true, nil
}

// Set encodes value and stores it at key.
func (c *JSON[T]) Set(ctx context.Context, key string, value T) error {
	if c == nil || c.backend == nil {
		return ErrBackendUnavailable
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.backend.Set(ctx, key, raw, c.ttl)
}

// Delete removes key.
func (c *JSON[T]) Delete(ctx context.Context, key string) error {
	if c == nil || c.backend == nil {
		return ErrBackendUnavailable
	}
	return c.backend.Delete(ctx, key)
}
