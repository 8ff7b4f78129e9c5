package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/database/testutil"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreFromClient(client), server
}

func TestRedisStoreIncrementWithTTL(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	server.FastForward(20 * time.Second)

	count, ttl, err = store.IncrementWithTTL(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.LessOrEqual(t, ttl, 40*time.Second)
	require.Greater(t, ttl, time.Duration(0))

	server.FastForward(41 * time.Second)

	count, _, err = store.IncrementWithTTL(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "window restarts after expiry")

	require.True(t, server.Exists("staffhub:rl:login:1.2.3.4"))
}

func TestRedisStoreSetGetDelete(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)

	server.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Delete(ctx, "a", "missing"))
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Ping(ctx))
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.Error(t, err)
}

func TestNewRedisStoreConnects(t *testing.T) {
	server := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{Address: server.Addr()})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(30 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 30*time.Second, ttl)

	now = now.Add(31 * time.Second)
	count, _, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreSetGetAndPurge(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("y"), 0))

	value, ok, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("x"), value)

	now = now.Add(2 * time.Minute)
	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "forever"))
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilDatabaseStore(t *testing.T) {
	var store *DatabaseStore
	_, _, err := store.IncrementWithTTL(context.Background(), "k", time.Second)
	require.Error(t, err)
	require.Nil(t, NewDatabaseStore(nil))
}
