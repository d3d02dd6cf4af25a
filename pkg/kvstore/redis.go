// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/errors"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second

	readyPollInterval = 500 * time.Millisecond
)

// RedisStore implements Store over a Redis cluster or single node.
type RedisStore struct {
	client redis.UniversalClient
}

// New connects to Redis per cfg and blocks until the cluster answers a
// ping or cfg.ReadyTimeout elapses. On timeout the returned error carries
// the unavailable taxonomy type.
func New(ctx context.Context, cfg config.Redis) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})

	if err := waitReady(ctx, client, cfg.ReadyTimeout); err != nil {
		_ = client.Close()
		return nil, errors.NewUnavailableError(
			fmt.Sprintf("redis at %s not ready within %s", cfg.Addr(), cfg.ReadyTimeout), err)
	}

	return &RedisStore{client: client}, nil
}

// NewWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func waitReady(ctx context.Context, client redis.UniversalClient, bound time.Duration) error {
	operation := func() (any, error) {
		return nil, client.Ping(ctx).Err()
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(readyPollInterval)),
		backoff.WithMaxElapsedTime(bound),
		backoff.WithNotify(func(err error, duration time.Duration) {
			logger.Debugf("Redis not ready, retrying in %v: %v", duration, err)
		}),
	)
	return err
}

// Set writes a value. A zero ttl maps to KEEPTTL so an existing expiry is
// never clobbered by a plain overwrite.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = redis.KeepTTL
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.NewUnavailableError(fmt.Sprintf("failed to set %s", key), err)
	}
	return nil
}

// Get reads a value, mapping an absent key to (nil, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.NewUnavailableError(fmt.Sprintf("failed to get %s", key), err)
	}
	return data, true, nil
}

// Del removes the given keys.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.NewUnavailableError("failed to delete keys", err)
	}
	return nil
}

// TTL reports the remaining lifetime of a key.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, errors.NewUnavailableError(fmt.Sprintf("failed to read ttl of %s", key), err)
	}
	return ttl, nil
}

// incrWithExpiryScript atomically increments a counter and, when the
// increment created the key, applies the expiry. Used for rolling daily
// aggregates so the window cannot leak past its day.
var incrWithExpiryScript = redis.NewScript(`
local total = redis.call('INCRBY', KEYS[1], ARGV[1])
if total == tonumber(ARGV[1]) and tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return total
`)

// IncrBy atomically adds delta to an integer key, applying ttlIfNew when
// the key did not previously exist.
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64, ttlIfNew time.Duration) (int64, error) {
	total, err := incrWithExpiryScript.Run(ctx, s.client, []string{key}, delta, ttlIfNew.Milliseconds()).Int64()
	if err != nil {
		return 0, errors.NewUnavailableError(fmt.Sprintf("failed to increment %s", key), err)
	}
	return total, nil
}

// Healthy probes the underlying store.
func (s *RedisStore) Healthy(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Compile-time interface compliance check
var _ Store = (*RedisStore)(nil)
