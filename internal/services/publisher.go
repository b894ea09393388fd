package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyplanner-backend/internal/models"
)

// UpdatePublisher pushes live updates towards a user's websocket connections.
type UpdatePublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// RedisPublisher fans updates out over Redis pub/sub so every API instance's hub can forward them.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s update: %w", msg.Type, err)
	}
	return p.redis.Publish(ctx, models.UserUpdatesChannel(userID), data).Err()
}
