package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taskmux/taskmux/config"
)

const (
	dispatchListKey = "taskmux:dispatches"
	// maxKeptDispatches bounds the Redis list so history cannot grow
	// without limit.
	maxKeptDispatches = 1000
)

// RedisStore persists dispatch history as a capped Redis list, newest first.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// SaveDispatch pushes the record to the front of the history list and trims
// the tail.
func (s *RedisStore) SaveDispatch(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dispatch %s: %w", rec.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, dispatchListKey, payload)
	pipe.LTrim(ctx, dispatchListKey, 0, maxKeptDispatches-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// RecentDispatches returns up to limit records, newest first.
func (s *RedisStore) RecentDispatches(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	raw, err := s.client.LRange(ctx, dispatchListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range dispatches: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode dispatch: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
