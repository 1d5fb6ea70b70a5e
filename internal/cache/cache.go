// Package cache is the advisory redis layer: recent decisions and the
// pending-sample counter. Every write path is fail-silent; the scoring
// pipeline must keep working with redis down.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trafficguard/botscore/internal/models"
)

const (
	predictionKeyPrefix = "ml:prediction:"
	pendingSamplesKey   = "ml:training_queue_size"

	predictionTTL = time.Hour
)

type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		logger: logger,
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PutPrediction caches a decision for an hour. Failures are logged and
// swallowed.
func (c *Cache) PutPrediction(ctx context.Context, fingerprint string, entry models.CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("encoding prediction cache entry", "error", err)
		return
	}
	if err := c.client.Set(ctx, predictionKeyPrefix+fingerprint, data, predictionTTL).Err(); err != nil {
		c.logger.Warn("caching prediction", "fingerprint", fingerprint, "error", err)
	}
}

// GetPrediction returns the cached decision for a fingerprint, or nil on
// miss or any error.
func (c *Cache) GetPrediction(ctx context.Context, fingerprint string) *models.CacheEntry {
	data, err := c.client.Get(ctx, predictionKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("reading prediction cache", "fingerprint", fingerprint, "error", err)
		}
		return nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("decoding prediction cache entry", "fingerprint", fingerprint, "error", err)
		return nil
	}
	return &entry
}

// IncrPendingSamples bumps the counter of samples queued since the last
// training run.
func (c *Cache) IncrPendingSamples(ctx context.Context) {
	if err := c.client.Incr(ctx, pendingSamplesKey).Err(); err != nil {
		c.logger.Warn("incrementing pending sample counter", "error", err)
	}
}

// PendingSamples reads the queued-sample counter; 0 on any error.
func (c *Cache) PendingSamples(ctx context.Context) int {
	count, err := c.client.Get(ctx, pendingSamplesKey).Int()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("reading pending sample counter", "error", err)
		}
		return 0
	}
	return count
}

// ResetPendingSamples clears the counter after a training run consumed the
// queue.
func (c *Cache) ResetPendingSamples(ctx context.Context) {
	if err := c.client.Del(ctx, pendingSamplesKey).Err(); err != nil {
		c.logger.Warn("resetting pending sample counter", "error", err)
	}
}
