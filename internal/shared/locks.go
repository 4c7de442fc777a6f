package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when another instance holds the lock past the retry window.
var ErrLockBusy = errors.New("lock busy")

// PurchaseOrderLockKey builds the redis key guarding receipts for one purchase order.
func PurchaseOrderLockKey(storeID, poID int64) string {
	return fmt.Sprintf("storeops:store:%d:po:%d:receive", storeID, poID)
}

// Locker serialises critical sections across application instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// RedisLocker implements Locker with redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	step   time.Duration
}

// NewRedisLocker builds a locker holding keys for ttl and waiting up to ttl to obtain them.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, wait: ttl, step: 50 * time.Millisecond}
}

// Acquire obtains key or returns ErrLockBusy once the wait window elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	// retries stop one step short of the wait deadline
	retries := int(l.wait/l.step) - 1
	retry := redislock.LimitRetry(redislock.LinearBackoff(l.step), max(retries, 0))
	lock, err := l.client.Obtain(waitCtx, key, l.ttl, &redislock.Options{RetryStrategy: retry})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) ||
			(errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
			return nil, fmt.Errorf("%w: %s", ErrLockBusy, key)
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
