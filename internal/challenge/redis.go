package challenge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gatehouse:challenge"

// RedisStore keeps challenges in Redis so multiple instances share one
// challenge space. Expiry is enforced by key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	rand   io.Reader
}

// NewRedisStore builds a Redis-backed challenge store with the given TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(value []byte) string {
	return redisKeyPrefix + ":" + challengeKey(value)
}

// Issue generates a challenge and stores its binding under the challenge key.
func (s *RedisStore) Issue(ctx context.Context, boundAccountID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("redis client is not configured")
	}

	value, err := generate(s.rand)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, redisKey(value), boundAccountID, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return value, nil
}

// Consume validates and deletes a challenge inside a WATCH transaction.
// A concurrent consume of the same key aborts the transaction, so at most
// one caller wins.
func (s *RedisStore) Consume(ctx context.Context, candidate []byte, expectedAccountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return fmt.Errorf("redis client is not configured")
	}
	if len(candidate) == 0 {
		return ErrNotFound
	}

	const maxRetries = 4
	key := redisKey(candidate)

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			bound, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			if bound != "" && bound != expectedAccountID {
				return ErrMismatch
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if errors.Is(err, ErrMismatch) {
				return err
			}
			return fmt.Errorf("consume challenge: %w", err)
		}
		return nil
	}
	return ErrNotFound
}
