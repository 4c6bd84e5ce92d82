// Package memory provides an in-process key-value store for tests, dry runs,
// and deployments that do not need durable state.
package memory

import (
	"context"
	"fmt"
	"sync"

	"flockcore/pkg/domain"
)

var _ domain.KeyValueStore = (*Store)(nil)

// Store keeps values in a map. A positive quota caps the total bytes of keys
// and values, mirroring browser storage limits.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithQuota limits the total stored size in bytes. Zero disables the limit.
func WithQuota(bytes int) Option {
	return func(s *Store) { s.quota = bytes }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{values: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements domain.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, fmt.Errorf("memory store closed")
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements domain.KeyValueStore. Writes that would exceed the quota
// fail with domain.ErrQuotaExceeded and leave the previous value in place.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	if s.quota > 0 {
		used := 0
		for k, v := range s.values {
			if k == key {
				continue
			}
			used += len(k) + len(v)
		}
		if used+len(key)+len(value) > s.quota {
			return fmt.Errorf("set %s: %w", key, domain.ErrQuotaExceeded)
		}
	}
	s.values[key] = value
	return nil
}

// Close implements domain.KeyValueStore.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
