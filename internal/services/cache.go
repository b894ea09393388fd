package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"studyplanner-backend/internal/models"
)

const statsCacheTTL = 10 * time.Minute

// StatsCache is a best-effort read cache; misses and errors fall through to the store.
type StatsCache interface {
	GetStats(ctx context.Context, userID uuid.UUID) (*models.StudyStats, bool)
	SetStats(ctx context.Context, stats *models.StudyStats)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type RedisStatsCache struct {
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewRedisStatsCache(redisClient *redis.Client, log *zap.Logger) *RedisStatsCache {
	return &RedisStatsCache{redis: redisClient, ttl: statsCacheTTL, log: log}
}

func statsKey(userID uuid.UUID) string {
	return fmt.Sprintf("study_stats:%s", userID)
}

func (c *RedisStatsCache) GetStats(ctx context.Context, userID uuid.UUID) (*models.StudyStats, bool) {
	raw, err := c.redis.Get(ctx, statsKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("stats cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
		return nil, false
	}

	var stats models.StudyStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.log.Warn("stats cache entry is corrupt", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, false
	}
	return &stats, true
}

func (c *RedisStatsCache) SetStats(ctx context.Context, stats *models.StudyStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, statsKey(stats.UserID), data, c.ttl).Err(); err != nil {
		c.log.Warn("stats cache write failed", zap.String("user_id", stats.UserID.String()), zap.Error(err))
	}
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.redis.Del(ctx, statsKey(userID)).Err(); err != nil {
		c.log.Warn("stats cache invalidation failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
