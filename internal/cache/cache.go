// Package cache memoizes upstream lookups in a KV store with a time-to-live.
//
// Entries are stored as {"timestamp": <epoch ms>, "data": <json>} and are
// replaced wholesale on refetch. Staleness is evaluated when an entry is read;
// nothing sweeps the store in the background.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/i474232898/daily-dashboard/internal/store"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

// DefaultTTL is the freshness window used when Options.TTL is zero.
const DefaultTTL = time.Hour

// Entry is the persisted shape of a cached value.
type Entry struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Options tune a Cache.
type Options struct {
	TTL time.Duration
	// Now overrides the clock; tests advance it to force expiry.
	Now func() time.Time
}

// Cache is a get-or-fetch memoizer over a store.KV.
type Cache struct {
	kv     store.KV
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// New creates a Cache.
func New(kv store.KV, opts Options, log *logger.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		kv:     kv,
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: log.Named("ttl-cache"),
	}
}

// TTL reports the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Clear drops every entry in the underlying store, forcing the next lookups to refetch.
func (c *Cache) Clear(ctx context.Context) error {
	return c.kv.Clear(ctx)
}

// GetOrFetch returns the fresh value under key, or calls fetch and stores its
// result. A failing fetch is returned as-is and leaves the store untouched.
// Store and encoding problems are logged and never block the read path.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := lookup[T](ctx, c, key); ok {
		return v, nil
	}

	c.logger.Debug("Fetching fresh data", logger.String("key", key))
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	c.put(ctx, key, v)
	return v, nil
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T

	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("Cache read failed", logger.String("key", key), logger.Error(err))
		}
		return zero, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("Discarding corrupt cache entry", logger.String("key", key), logger.Error(err))
		return zero, false
	}

	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	if age < 0 {
		c.logger.Warn("Discarding cache entry stamped in the future", logger.String("key", key), logger.Duration("age", age))
		return zero, false
	}
	if age >= c.ttl {
		c.logger.Debug("Cache expired", logger.String("key", key), logger.Duration("age", age))
		return zero, false
	}

	var v T
	if err := json.Unmarshal(entry.Data, &v); err != nil {
		c.logger.Warn("Discarding undecodable cache data", logger.String("key", key), logger.Error(err))
		return zero, false
	}

	c.logger.Debug("Using cached data", logger.String("key", key))
	return v, true
}

func (c *Cache) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}

	raw, err := json.Marshal(Entry{Timestamp: c.now().UnixMilli(), Data: data})
	if err != nil {
		c.logger.Warn("Cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}

	if err := c.kv.Set(ctx, key, raw); err != nil {
		c.logger.Warn("Cache write failed", logger.String("key", key), logger.Error(err))
	}
}
