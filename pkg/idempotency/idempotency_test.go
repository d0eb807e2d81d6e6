package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestStoreSeen(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb, time.Minute)
	ctx := context.Background()
	key := s.Key("notifications", 3, 42)
	assert.Equal(t, "idem:notifications:3:42", key)

	seen, err := s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, s.Forget(ctx, key))
	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLockerExcludes(t *testing.T) {
	_, rdb := newRedis(t)
	l := NewLocker(rdb, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "order-cancel:O1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "order-cancel:O1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := l.Lock(ctx, "order-cancel:O1")
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewLocker(rdb, time.Second)
	ctx := context.Background()

	stale, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("lock:k"))

	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists("lock:k"))
}

func TestLockerWaitsForRelease(t *testing.T) {
	_, rdb := newRedis(t)
	l := NewLocker(rdb, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = unlock(context.Background())
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	again, err := l.Lock(waitCtx, "k")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
