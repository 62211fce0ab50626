package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is a Backend over INCR and EXPIRE.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Incr implements Backend.
func (b *RedisBackend) Incr(ctx context.Context, key string) (int64, error) {
	return b.client.Incr(ctx, key).Result()
}

// Expire implements Backend.
func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.client.Expire(ctx, key, ttl).Err()
}
