package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs cooldowns with Redis SET NX, for deployments running
// more than one steward process against the same communities.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "tempvox:cooldown:",
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// TryAcquire takes the cooldown via SET NX with the window as TTL.
func (s *RedisStore) TryAcquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), 1, window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to acquire cooldown in Redis: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil || remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

// Release drops the cooldown for key, if held.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown in Redis: %w", err)
	}
	return nil
}
