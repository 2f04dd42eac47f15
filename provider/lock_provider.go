package provider

import (
	"context"
	"time"

	apperrors "github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/Digital-Creators-Team/prize-wheel-module/db/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock key only if this holder still owns it
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLocker is a lease-based implementation of wheel.Locker backed by
// Redis SetNX. Unlike the process-local locker it serializes a user's
// spins across server instances; the lease expires on its own if a
// holder dies without releasing.
type RedisLocker struct {
	client *redis.Client
	lease  time.Duration
	retry  time.Duration
	logger zerolog.Logger
}

// NewRedisLocker creates a distributed locker with the given lease
func NewRedisLocker(client *redis.Client, lease time.Duration, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		lease:  lease,
		retry:  25 * time.Millisecond,
		logger: logger.With().Str("component", "redis_locker").Logger(),
	}
}

// WithLock acquires the lease for key, runs fn, and releases. Waiting
// callers poll until the holder releases or the lease expires.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	lockKey := "wheel:lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.lease)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrRedisError, "failed to acquire spin lock")
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}

	defer func() {
		// best effort; an expired lease means another holder may own
		// the key now, so never plain-delete
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to release spin lock")
		}
	}()

	return fn()
}
