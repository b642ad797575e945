package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores the roster under a single Redis key.
type RedisSlot struct {
	client redis.Cmdable
	key    string
}

// NewRedisSlot creates a RedisSlot using key on the given client.
func NewRedisSlot(client redis.Cmdable, key string) *RedisSlot {
	if key == "" {
		key = DefaultSlotName
	}
	return &RedisSlot{client: client, key: key}
}

// Key returns the Redis key holding the roster.
func (s *RedisSlot) Key() string {
	return s.key
}

// Read fetches the key; a missing key is reported as ErrSlotEmpty.
func (s *RedisSlot) Read(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSlotEmpty
		}
		return nil, fmt.Errorf("read redis slot %s: %w", s.key, err)
	}
	return data, nil
}

// Write sets the key without expiry.
func (s *RedisSlot) Write(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write redis slot %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the key.
func (s *RedisSlot) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear redis slot %s: %w", s.key, err)
	}
	return nil
}
