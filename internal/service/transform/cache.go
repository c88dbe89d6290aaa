package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"braindump/internal/domain/models"
)

const cacheKeyPrefix = "braindump:transform:"

// Cache stores successful transform results by content hash and model.
type Cache interface {
	Get(ctx context.Context, hash, model string) (*models.ProcessedDocument, bool, error)
	Set(ctx context.Context, hash, model string, doc *models.ProcessedDocument) error
}

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache over an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(hash, model string) string {
	return cacheKeyPrefix + hash + ":" + model
}

// Get returns the cached document, or false on a miss.
func (c *RedisCache) Get(ctx context.Context, hash, model string) (*models.ProcessedDocument, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(hash, model)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached transform: %w", err)
	}

	var doc models.ProcessedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached transform: %w", err)
	}
	return &doc, true, nil
}

// Set stores doc under hash and model.
func (c *RedisCache) Set(ctx context.Context, hash, model string, doc *models.ProcessedDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal transform: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(hash, model), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached transform: %w", err)
	}
	return nil
}
