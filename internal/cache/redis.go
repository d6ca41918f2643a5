// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/eduscout/pkg/types"
)

// keyPrefix namespaces eduscout entries in a shared Redis.
const keyPrefix = "eduscout:results:"

// RedisStore is a Store backed by Redis, for deployments where several
// instances should share one cache. TTL is enforced server-side via
// SET NX EX; NX keeps payloads write-once (R1.3).
type RedisStore struct {
	counters

	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects a Redis-backed cache. The client is pinged so a
// misconfigured address fails at startup, not mid-request.
func NewRedisStore(ctx context.Context, cfg types.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.RedisAddr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

// Get returns the cached payload for (query, provider), if present.
func (s *RedisStore) Get(ctx context.Context, query, provider string) ([]types.RawResult, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+Key(query, provider)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.miss()
		return nil, false, nil
	}
	if err != nil {
		s.miss()
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var payload []types.RawResult
	if err := json.Unmarshal(data, &payload); err != nil {
		// A corrupt entry behaves as a miss so a live call refreshes it.
		s.miss()
		return nil, false, nil
	}
	s.hit()
	return payload, true, nil
}

// Len counts the live eduscout entries, for the stats command.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Purge deletes every eduscout entry and returns how many were removed.
// Only the namespaced keys are touched; the Redis may be shared.
func (s *RedisStore) Purge(ctx context.Context) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Set stores the payload with the configured TTL. NX leaves an existing
// live entry untouched.
func (s *RedisStore) Set(ctx context.Context, query, provider string, payload []types.RawResult) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	if err := s.client.SetNX(ctx, keyPrefix+Key(query, provider), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
