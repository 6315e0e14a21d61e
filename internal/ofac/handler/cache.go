package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ofactrack/internal/ofac/models"
	"ofactrack/internal/platform/redis"
)

// seriesCache caches per-country panel series in Redis. The panel only
// changes once a month, so a short TTL is plenty; every cache failure
// degrades to recomputing, never to an error.
type seriesCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func newSeriesCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *seriesCache {
	return &seriesCache{client: client, ttl: ttl, logger: logger}
}

func seriesKey(country string, entityOnly bool) string {
	return fmt.Sprintf("panel:series:%s:%t", country, entityOnly)
}

func (c *seriesCache) get(ctx context.Context, country string, entityOnly bool) ([]models.PanelRow, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, seriesKey(country, entityOnly)).Bytes()
	if err == goredis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("panel cache read failed", zap.Error(err))
		return nil, false
	}
	var rows []models.PanelRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		c.logger.Warn("panel cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return rows, true
}

func (c *seriesCache) set(ctx context.Context, country string, entityOnly bool, rows []models.PanelRow) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, seriesKey(country, entityOnly), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("panel cache write failed", zap.Error(err))
	}
}
