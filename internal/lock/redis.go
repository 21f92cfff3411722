// Package lock provides per-key advisory locks backed by Redis so that
// overlapping alert runs (other replicas, a manual trigger during a cron
// run) never process the same saved search at the same time.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "alerts:lock:"

// releaseScript deletes the key only when it still holds our token, so a lock
// that expired and was re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements SET NX PX locks.
type RedisLocker struct {
	rdb redis.Cmdable
}

// NewRedisLocker returns a locker using rdb.
func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// TryLock attempts to take key for ttl. ok is false when another holder has
// it. The returned release func is safe to call once the work is done; it
// uses its own short timeout so a cancelled run still cleans up.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	token := uuid.NewString()
	full := keyPrefix + key

	ok, err = l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis SETNX %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{full}, token).Err()
	}
	return release, true, nil
}
