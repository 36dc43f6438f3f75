package lock

import (
	"context"
	"fmt"
	"time"

	"saascribe-platform/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPollInterval = 100 * time.Millisecond

// releaseScript deletes the key only if it still holds our token, so an
// expired lease never releases someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every process using the same
// Redis. Leases expire after ttl if the holder dies.
type RedisLocker struct {
	rdb          redis.Cmdable
	prefix       string
	pollInterval time.Duration
}

func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{
		rdb:          rdb,
		prefix:       "lock:",
		pollInterval: defaultPollInterval,
	}
}

// Acquire blocks until the lease is obtained or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() { l.release(fullKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(fullKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.rdb, []string{fullKey}, token).Err(); err != nil {
		logger.Warn("Failed to release lock", "key", fullKey, "error", err)
	}
}
