package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// snapshotHashKey is the Redis hash holding minute buckets, field = minute
// key, value = JSON-encoded bucket.
const snapshotHashKey = "lingoflow:stats:minutes"

// snapshotTTL keeps the hash a little longer than the window so a restart
// inside the window loses nothing.
const snapshotTTL = 25 * time.Hour

// RedisStore mirrors minute buckets to Redis so the statistics window
// survives process restarts. All failures are reported to the caller and
// degrade the window to memory-only behaviour.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects a snapshot store to the given Redis instance.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Save writes one bucket and refreshes the hash TTL.
func (s *RedisStore) Save(ctx context.Context, key string, b Bucket) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("stats: encode bucket: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, snapshotHashKey, key, data)
	pipe.Expire(ctx, snapshotHashKey, snapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stats: save bucket %s: %w", key, err)
	}
	return nil
}

// Load reads every stored bucket. Undecodable fields are skipped.
func (s *RedisStore) Load(ctx context.Context) (map[string]Bucket, error) {
	raw, err := s.client.HGetAll(ctx, snapshotHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("stats: load buckets: %w", err)
	}

	out := make(map[string]Bucket, len(raw))
	for key, val := range raw {
		var b Bucket
		if json.Unmarshal([]byte(val), &b) != nil {
			continue
		}
		out[key] = b
	}
	return out, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ SnapshotStore = (*RedisStore)(nil)
