package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeaseTTL = 10 * time.Second
	DefaultWait     = 5 * time.Second
	retryInterval   = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token,
// so an expired lease taken over by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lease only while we still own it.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a lease lock shared by every replica. A holder renews its
// lease every ttl/3 until it unlocks, so a dead holder frees the key after
// at most ttl. wait bounds how long Lock polls.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	k := lockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis lock failed: %w", err)
		}
		if ok {
			return l.unlockFunc(k, token), nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: key=%s: %w", domain.ErrLockTimeout, key, ctx.Err())
		}
	}
}

func (l *RedisLocker) unlockFunc(k, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(k, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// the request context may already be gone
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
				l.logger.Warn("lock release failed", "key", k, "error", err)
			}
		})
	}
}

// keepAlive extends the lease until stop is closed or the lease turns out
// to belong to someone else.
func (l *RedisLocker) keepAlive(k, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		n, err := refreshScript.Run(ctx, l.client, []string{k}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			l.logger.Warn("lock refresh failed", "key", k, "error", err)
		case n == 0:
			l.logger.Warn("lock lease lost", "key", k)
			return
		}
	}
}

func lockKey(key string) string {
	return fmt.Sprintf("cart-lock:%s", key)
}
