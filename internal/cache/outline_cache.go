// Package cache provides the redis-backed outline cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/openlearn/outline-service/internal/models"
)

type redisOutlineCache struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewRedisOutlineCache creates a redis-backed outline cache
func NewRedisOutlineCache(rdb *redis.Client, logger *zap.Logger) *redisOutlineCache {
	return &redisOutlineCache{
		redis:  rdb,
		logger: logger,
	}
}

// Get retrieves a cached outline. The cache is an optimization only, so any
// redis or decoding failure is logged and reported as a miss.
func (c *redisOutlineCache) Get(ctx context.Context, key string) (*models.CourseOutline, bool) {
	payload, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Outline cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	outline, err := decodeOutline(payload)
	if err != nil {
		c.logger.Warn("Outline cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return outline, true
}

// Set stores an outline with a bounded TTL, best effort.
func (c *redisOutlineCache) Set(ctx context.Context, key string, outline *models.CourseOutline, ttl time.Duration) {
	payload, err := encodeOutline(outline)
	if err != nil {
		c.logger.Warn("Failed to encode outline for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn("Outline cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// encodeOutline serializes an outline for cache storage
func encodeOutline(outline *models.CourseOutline) ([]byte, error) {
	payload, err := json.Marshal(outline)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outline: %w", err)
	}
	return payload, nil
}

// decodeOutline deserializes a cached outline
func decodeOutline(payload []byte) (*models.CourseOutline, error) {
	var outline models.CourseOutline
	if err := json.Unmarshal(payload, &outline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outline: %w", err)
	}
	return &outline, nil
}
