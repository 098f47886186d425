package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-batch-ledger/pkg/logger"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "ledger:batch:"
	redisBackoff   = 50 * time.Millisecond
)

// RedisLocker shares batch locks between ledger instances
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		// ~2s of waiting before the caller gets a conflict
		retry: redislock.LimitRetry(redislock.LinearBackoff(redisBackoff), 40),
	}
}

// WithMaxWait bounds how long Lock keeps retrying a held key. Zero fails
// on the first attempt.
func (l *RedisLocker) WithMaxWait(d time.Duration) *RedisLocker {
	if d <= 0 {
		l.retry = redislock.NoRetry()
		return l
	}
	l.retry = redislock.LimitRetry(redislock.LinearBackoff(redisBackoff), int(d/redisBackoff))
	return l
}

var _ Locker = (*RedisLocker)(nil)

func (l *RedisLocker) Lock(ctx context.Context, ids ...uint64) (func(), error) {
	ordered := normalize(ids)
	held := make([]*redislock.Lock, 0, len(ordered))

	for _, id := range ordered {
		lk, err := l.client.Obtain(ctx, fmt.Sprintf("%s%d", redisKeyPrefix, id), l.ttl, &redislock.Options{
			RetryStrategy: l.retry,
		})
		if err != nil {
			releaseAll(held)
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("batch %d: %w", id, ErrNotObtained)
			}
			return nil, fmt.Errorf("batch %d: redis lock: %w", id, err)
		}
		held = append(held, lk)
	}

	return func() { releaseAll(held) }, nil
}

func releaseAll(held []*redislock.Lock) {
	for i := len(held) - 1; i >= 0; i-- {
		// An expired lock is not fatal: the row lock and version check still guard the write
		if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.LogError("lock", "releaseAll", "release redis lock", held[i].Key(), err)
		}
	}
}
