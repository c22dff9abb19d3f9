package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts credential attempts per key in fixed windows shared by
// every instance pointed at the same Redis.
// Counters are stored as: INCR login:attempts:{key} with EXPIRE window on first hit.
type LoginLimiter struct {
	client   *redis.Client
	attempts int
	window   time.Duration
}

func NewLoginLimiter(client *redis.Client, attempts int, window time.Duration) *LoginLimiter {
	if attempts <= 0 {
		attempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{client: client, attempts: attempts, window: window}
}

func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.attempts), nil
}

func (l *LoginLimiter) key(key string) string {
	return "login:attempts:" + key
}
