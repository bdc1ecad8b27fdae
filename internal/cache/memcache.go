package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheBackend stores values in memcached.
type MemcacheBackend struct {
	client *memcache.Client
	prefix string
}

// NewMemcacheBackend returns a backend for the memcached servers in addrs.
// Every key is namespaced with prefix.
func NewMemcacheBackend(prefix string, addrs ...string) *MemcacheBackend {
	client := memcache.New(addrs...)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheBackend{client: client, prefix: prefix}
}

// Ping checks that every configured server answers.
func (m *MemcacheBackend) Ping() error {
	if err := m.client.Ping(); err != nil {
		return fmt.Errorf("ping memcached: %w", err)
	}
	return nil
}

// Get implements Backend.
func (m *MemcacheBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := m.client.Get(m.prefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcached get: %w", err)
	}
	return item.Value, true, nil
}

// Set implements Backend. The ttl is rounded up to whole seconds.
func (m *MemcacheBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int32((ttl + time.Second - 1) / time.Second)
	if seconds <= 0 {
		seconds = 60
	}
	err := m.client.Set(&memcache.Item{
		Key:        m.prefix + key,
		Value:      value,
		Expiration: seconds,
	})
	if err != nil {
		return fmt.Errorf("memcached set: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (m *MemcacheBackend) Delete(_ context.Context, key string) error {
	err := m.client.Delete(m.prefix + key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcached delete: %w", err)
	}
	return nil
}
