// Package idempotency implements the submission-key idempotency store: a
// get(key)/put(key, record, ttl) capability over Redis, namespaced
// "idempotency:<k>", fail-open on read errors.
package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notifybridge/pipeline/internal/telemetry"
)

const keyPrefix = "idempotency:"

// Record is the cached response snapshot for a previously-seen
// idempotency key.
type Record struct {
	Key              string          `json:"key"`
	ResponseSnapshot json.RawMessage `json:"response_snapshot"`
	StoredAt         time.Time       `json:"stored_at"`
}

// Store is the capability set this package exposes: Get returns nil (not
// an error) for a missing key; Put is best-effort.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, key string, record *Record, ttl time.Duration) error
}

// RedisStore is the Store backed by Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func fullKey(key string) string { return keyPrefix + key }

// Get returns the cached record for key, or nil if absent. Redis errors
// are treated as a cache miss ("fail open" on the read path) and logged,
// never surfaced to the caller.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	logger := telemetry.LogFromContext(ctx).WithField("idempotency_key", key)

	raw, err := s.client.Get(ctx, fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		logger.WithField("operation", "get").Warnf("idempotency store read failed, treating as miss: %v", err)
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.WithField("operation", "get").Warnf("idempotency record decode failed, treating as miss: %v", err)
		return nil, nil
	}
	return &rec, nil
}

// Put stores record under key with the given TTL. Errors are logged but
// never returned as failures: the downstream enqueue has already
// happened, so a lost idempotency entry only risks a duplicate enqueue,
// which the rest of the pipeline already tolerates (at-least-once).
func (s *RedisStore) Put(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	logger := telemetry.LogFromContext(ctx).WithField("idempotency_key", key)

	raw, err := json.Marshal(record)
	if err != nil {
		logger.WithField("operation", "put").Warnf("idempotency record encode failed: %v", err)
		return nil
	}

	if err := s.client.Set(ctx, fullKey(key), raw, ttl).Err(); err != nil {
		logger.WithField("operation", "put").Warnf("idempotency store write failed: %v", err)
		return nil
	}
	return nil
}
