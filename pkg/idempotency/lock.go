package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("lock held by another owner")

// Only the owner's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis lease lock. A holder that dies releases the lock when
// ttl runs out.
type Locker struct {
	rdb      redis.UniversalClient
	ttl      time.Duration
	maxRetry time.Duration
}

func NewLocker(rdb redis.UniversalClient, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl, maxRetry: 250 * time.Millisecond}
}

// Lock waits until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	k := "lock:" + key
	token := uuid.NewString()

	acquire := func() error {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLocked
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = l.maxRetry
	b.MaxElapsedTime = 0

	if err := backoff.Retry(acquire, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{k}, token).Err()
	}, nil
}
