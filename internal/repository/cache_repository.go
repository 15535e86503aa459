package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheRepository wraps the Redis operations used for caching and event fan-out.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil client disables caching.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// GetStrings fetches plain string values for keys in one round trip. Missing keys are omitted.
func (r *CacheRepository) GetStrings(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if r.client == nil || len(keys) == 0 {
		return values, nil
	}

	res, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range res {
		if s, ok := v.(string); ok {
			values[keys[i]] = s
		}
	}
	return values, nil
}

// SetStrings stores plain string values sharing one TTL using a pipeline.
func (r *CacheRepository) SetStrings(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if r.client == nil || len(values) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for key, value := range values {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}

// Publish sends payload as JSON on the given pub/sub channel.
func (r *CacheRepository) Publish(ctx context.Context, channel string, payload interface{}) error {
	if r.client == nil {
		r.logger.Debug("redis disabled, dropping publish", zap.String("channel", channel))
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}
	if err := r.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
