// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss indicates the key is absent or expired.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// RedisStore keeps JSON-encoded entries in Redis so several processes can
// share results. Redis expires keys on its own; the stored expiry is also
// checked on read.
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wraps client. Keys are stored as prefix+key.
func NewRedisStore[V any](client *redis.Client, prefix string, ttl time.Duration) *RedisStore[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore[V]{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the entry for key, or ErrMiss.
func (s *RedisStore[V]) Get(ctx context.Context, key string) (Entry[V], error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.WithLabelValues("redis").Inc()
			return Entry[V]{}, ErrMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return Entry[V]{}, fmt.Errorf("redis get: %w", err)
	}

	var e Entry[V]
	if err := json.Unmarshal(data, &e); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return Entry[V]{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.Expired(s.now()) {
		_ = s.Delete(ctx, key)
		cacheMisses.WithLabelValues("redis").Inc()
		return Entry[V]{}, ErrMiss
	}

	cacheHits.WithLabelValues("redis").Inc()
	return e, nil
}

// Set stores value for the store's TTL.
func (s *RedisStore[V]) Set(ctx context.Context, key string, value V) error {
	e := Entry[V]{Value: value, ExpiresAt: s.now().Add(s.ttl)}
	data, err := json.Marshal(e)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore[V]) Close() error {
	return s.client.Close()
}
