package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no value is stored under a key.
	ErrNotFound = errors.New("no value for key")
)

// KV is the key-value persistence the cache and settings layers are built on.
// Values are opaque bytes; callers own the encoding.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type memoryItem struct {
	value     []byte
	updatedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory KV.
type MemoryStore struct {
	mu sync.RWMutex

	data map[string]memoryItem

	// maxEntries bounds the map; the oldest write is evicted first.
	maxEntries int
}

// NewMemoryStore creates a new MemoryStore.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]memoryItem),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set replaces the value under key and enforces the entry limit.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memoryItem{value: buf, updatedAt: time.Now()}

	if s.maxEntries > 0 && len(s.data) > s.maxEntries {
		s.evictOldestLocked(key)
	}
	return nil
}

func (s *MemoryStore) evictOldestLocked(keep string) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, item := range s.data {
		if k == keep {
			continue
		}
		if oldestKey == "" || item.updatedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = item.updatedAt
		}
	}
	if oldestKey != "" {
		delete(s.data, oldestKey)
	}
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]memoryItem)
	return nil
}

// ClearPrefix drops every entry whose key starts with prefix.
func (s *MemoryStore) ClearPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
