package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a lease could not be acquired in time.
var ErrLockTimeout = errors.New("lease acquisition timed out")

// releaseScript deletes the lease only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker hands out short-lived leases (SET NX PX) so that concurrent
// service instances serialize writes for the same worker.
type RedisLocker struct {
	Client  *redis.Client
	TTL     time.Duration
	Wait    time.Duration
	Backoff time.Duration
	Prefix  string
}

// NewRedisLocker builds a locker with sane defaults for booking writes.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		Client:  client,
		TTL:     ttl,
		Wait:    5 * time.Second,
		Backoff: 25 * time.Millisecond,
		Prefix:  "lease:booking:",
	}
}

// Acquire blocks until the lease for key is held, the wait budget runs out
// or ctx is done. The returned func releases the lease.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	fullKey := l.Prefix + key
	deadline := time.Now().Add(l.Wait)
	backoff := l.Backoff

	for {
		ok, err := l.Client.SetNX(ctx, fullKey, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lease %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}

	release := func() {
		// The caller's ctx may already be cancelled; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.Client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			GetLogger().Warn("failed to release booking lease", zap.String("key", fullKey), zap.Error(err))
		}
	}
	return release, nil
}
