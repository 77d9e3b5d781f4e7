package idempotency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a port nothing listens on, so every call
// fails with a connection error. This exercises fail-open behavior
// without needing a live Redis instance.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
}

func TestRedisStore_Get_FailsOpenOnConnectionError(t *testing.T) {
	store := NewRedisStore(unreachableClient())

	rec, err := store.Get(context.Background(), "submission-key-1")

	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStore_Put_NeverReturnsErrorOnConnectionFailure(t *testing.T) {
	store := NewRedisStore(unreachableClient())

	err := store.Put(context.Background(), "submission-key-1", &Record{
		Key:              "submission-key-1",
		ResponseSnapshot: json.RawMessage(`{"status":"accepted"}`),
		StoredAt:         time.Now().UTC(),
	}, time.Hour)

	assert.NoError(t, err)
}

func TestFullKey_Namespaced(t *testing.T) {
	assert.Equal(t, "idempotency:abc-123", fullKey("abc-123"))
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	original := Record{
		Key:              "submission-key-2",
		ResponseSnapshot: json.RawMessage(`{"notification_id":"n-1"}`),
		StoredAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original.Key, decoded.Key)
	assert.JSONEq(t, string(original.ResponseSnapshot), string(decoded.ResponseSnapshot))
	assert.True(t, original.StoredAt.Equal(decoded.StoredAt))
}
