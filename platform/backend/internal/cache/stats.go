package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	rummyModels "rummy-engine/models"
)

const DefaultStatsTTL = 10 * time.Minute

var ErrCacheMiss = errors.New("cache miss")

// Store is the subset of the go-redis client used here
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// StatsCache keeps the latest statistics snapshot per session so dashboards
// can read it without touching the engine. A nil *StatsCache is a no-op.
type StatsCache struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

func NewStatsCache(store Store, ttl time.Duration, log *zap.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsCache{store: store, ttl: ttl, log: log.With(zap.String("component", "cache"))}
}

func statsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:stats", sessionID)
}

func (c *StatsCache) Put(ctx context.Context, sessionID string, stats rummyModels.Stats) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := c.store.Set(ctx, statsKey(sessionID), data, c.ttl).Err(); err != nil {
		c.log.Warn("Failed to cache stats", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	return nil
}

func (c *StatsCache) Get(ctx context.Context, sessionID string) (rummyModels.Stats, error) {
	var stats rummyModels.Stats
	if c == nil {
		return stats, ErrCacheMiss
	}
	data, err := c.store.Get(ctx, statsKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return stats, ErrCacheMiss
	}
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("decode cached stats: %w", err)
	}
	return stats, nil
}

func (c *StatsCache) Invalidate(ctx context.Context, sessionID string) error {
	if c == nil {
		return nil
	}
	return c.store.Del(ctx, statsKey(sessionID)).Err()
}
