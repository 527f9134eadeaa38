package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/daily-dashboard/pkg/logger"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "a", []byte("1")))
	require.NoError(t, kv.Set(ctx, "b", []byte("2")))
	require.NoError(t, kv.Set(ctx, "a", []byte("3")))

	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete(ctx, "never-there"))

	require.NoError(t, kv.Clear(ctx))
	_, err = kv.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore(0))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'x'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "first", []byte("1")))
	require.NoError(t, s.Set(ctx, "second", []byte("2")))
	require.NoError(t, s.Set(ctx, "third", []byte("3")))

	assert.Equal(t, 2, s.Len())
	_, err := s.Get(ctx, "third")
	assert.NoError(t, err)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), logger.Nop())
	require.NoError(t, err)
	defer s.Close()

	exerciseKV(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLiteStore(path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "weatherSettings", []byte(`{"city":"Warsaw"}`)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, logger.Nop())
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "weatherSettings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Warsaw"}`, string(v))
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()

	for name, backing := range map[string]func(t *testing.T) PrefixKV{
		"memory": func(t *testing.T) PrefixKV { return NewMemoryStore(0) },
		"sqlite": func(t *testing.T) PrefixKV {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), logger.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	} {
		t.Run(name, func(t *testing.T) {
			kv := backing(t)
			cache := NewNamespace(kv, "cache:")
			settings := NewNamespace(kv, "settings:")

			exerciseKV(t, cache)

			require.NoError(t, cache.Set(ctx, "weather_forecast_x", []byte("f")))
			require.NoError(t, settings.Set(ctx, "weatherSettings", []byte("s")))

			v, err := kv.Get(ctx, "settings:weatherSettings")
			require.NoError(t, err)
			assert.Equal(t, "s", string(v))

			require.NoError(t, cache.Clear(ctx))

			_, err = cache.Get(ctx, "weather_forecast_x")
			assert.ErrorIs(t, err, ErrNotFound)
			v, err = settings.Get(ctx, "weatherSettings")
			require.NoError(t, err)
			assert.Equal(t, "s", string(v))
		})
	}
}

// TestRedisStore needs a disposable Redis; set TEST_REDIS_ADDR to run it.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	kv := NewRedisStore(rdb, "daily-dashboard-test:", logger.Nop())
	t.Cleanup(func() {
		_ = kv.Clear(context.Background())
		_ = kv.Close()
	})

	exerciseKV(t, kv)

	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "cache:a", []byte("1")))
	require.NoError(t, kv.Set(ctx, "settings:b", []byte("2")))
	require.NoError(t, kv.ClearPrefix(ctx, "cache:"))

	_, err := kv.Get(ctx, "cache:a")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err := kv.Get(ctx, "settings:b")
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))
}
