package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CacheRepository abstracts persistence for cached plain values.
type CacheRepository interface {
	GetStrings(ctx context.Context, keys []string) (map[string]string, error)
	SetStrings(ctx context.Context, values map[string]string, ttl time.Duration) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// GetStrings returns the cached plain values found for keys, recording one lookup per key.
func (s *CacheService) GetStrings(ctx context.Context, keys []string) (map[string]string, error) {
	if !s.Enabled() || len(keys) == 0 {
		return map[string]string{}, nil
	}
	start := time.Now()
	values, err := s.repo.GetStrings(ctx, keys)
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("cache batch get failed", zap.Int("keys", len(keys)), zap.Error(err))
		return map[string]string{}, err
	}
	for _, key := range keys {
		_, hit := values[key]
		s.metrics.RecordCacheOperation(hit, duration)
	}
	return values, nil
}

// SetStrings stores plain values sharing one TTL.
func (s *CacheService) SetStrings(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if !s.Enabled() || len(values) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.SetStrings(ctx, values, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache batch set failed", zap.Int("keys", len(values)), zap.Error(err))
	}
	return err
}
