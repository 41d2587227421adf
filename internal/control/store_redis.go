package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const pauseKey = "subsidyledger:paused"

// RedisStore shares the pause flag across instances so a halt issued on
// one node is observed by all of them.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetPaused(ctx context.Context, paused bool) error {
	if !paused {
		if err := s.client.Del(ctx, pauseKey).Err(); err != nil {
			return fmt.Errorf("clear pause flag: %w", err)
		}
		return nil
	}
	if err := s.client.Set(ctx, pauseKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("set pause flag: %w", err)
	}
	return nil
}

func (s *RedisStore) Paused(ctx context.Context) (bool, error) {
	_, err := s.client.Get(ctx, pauseKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read pause flag: %w", err)
	}
	return true, nil
}
