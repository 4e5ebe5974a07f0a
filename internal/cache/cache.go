// Package cache memoizes detection results keyed by image content, so
// re-uploading the same image skips inference.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/goinfer/internal/detect"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// Cache stores detection results under content-derived keys.
type Cache interface {
	// Get returns the cached detections for a key. The second return value
	// reports whether the key was present.
	Get(ctx context.Context, key string) ([]detect.Detection, bool, error)

	Set(ctx context.Context, key string, detections []detect.Detection) error

	Close() error
}

// Key derives the cache key for an image payload: the hex SHA-256 of its
// bytes.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return "detections:" + hex.EncodeToString(sum[:])
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a redis-backed cache. Entries expire after ttl; zero
// means they never expire.
func NewRedis(addr string, ttl time.Duration) Cache {
	return &redisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]detect.Detection, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}

	var detections []detect.Detection
	if err = json.Unmarshal(payload, &detections); err != nil {
		// A corrupt entry is treated as a miss so it gets overwritten.
		telemetry.Logger("cache").Warn("dropping corrupt cache entry", "key", key, "error", err)
		return nil, false, nil
	}
	return detections, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, detections []detect.Detection) error {
	payload, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("failed to encode detections: %w", err)
	}
	if err = c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// disabled is the no-op cache used when no redis address is configured.
type disabled struct{}

// NewDisabled creates a cache that never hits.
func NewDisabled() Cache {
	return disabled{}
}

func (disabled) Get(context.Context, string) ([]detect.Detection, bool, error) {
	return nil, false, nil
}

func (disabled) Set(context.Context, string, []detect.Detection) error {
	return nil
}

func (disabled) Close() error {
	return nil
}
