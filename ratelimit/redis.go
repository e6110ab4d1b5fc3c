package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts windows in Redis so multiple gateway replicas share one
// window per key. The window boundary is the key's TTL: INCR opens or extends
// the count, PEXPIRE on the first hit closes the window.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(key string, window time.Duration) (Entry, error) {
	ctx := context.Background()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Entry{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return Entry{}, err
		}
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Entry{}, err
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. PEXPIRE raced a flush); restore it
		// so the window still closes.
		ttl = window
		s.client.PExpire(ctx, key, window)
	}

	return Entry{Count: int(count), ResetAt: time.Now().Add(ttl)}, nil
}
