package store

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/i474232898/daily-dashboard/pkg/logger"
)

// RedisStore keeps KV entries in Redis under a common prefix, so several
// dashboard instances can share one cache.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger *logger.Logger
}

// NewRedisStore wraps an existing client. Keys are stored as prefix+key.
func NewRedisStore(rdb *redis.Client, prefix string, log *logger.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, logger: log.Named("redis-kv")}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get returns the value under key or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return raw, nil
}

// Set stores value without expiry; freshness is decided by the cache layer.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis DEL %q: %w", key, err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.ClearPrefix(ctx, "")
}

// ClearPrefix removes every key under the store prefix followed by prefix.
func (s *RedisStore) ClearPrefix(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, s.key(prefix)+"*", 100).Iterator()
	var n int
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis DEL %q: %w", iter.Val(), err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis SCAN: %w", err)
	}
	s.logger.Info("Redis keys cleared", logger.String("prefix", s.key(prefix)), logger.Int("keys", n))
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
