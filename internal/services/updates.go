package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"inksink-backend/internal/models"
)

const SettlementQueue = "queue:chat-settlement"

// Publisher sends realtime updates to a user's websocket connections via
// Redis pub/sub.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

func UpdatesChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

func (p *Publisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, UpdatesChannel(userID), string(data)).Err()
}

// Settlements queues credit deductions for finished runs.
type Settlements struct {
	redis *redis.Client
}

func NewSettlements(redisClient *redis.Client) *Settlements {
	return &Settlements{redis: redisClient}
}

func (s *Settlements) Enqueue(ctx context.Context, runID string, userID uuid.UUID, credits int) error {
	data, err := json.Marshal(models.SettlementJob{
		RunID:      runID,
		UserID:     userID,
		Credits:    credits,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.redis.RPush(ctx, SettlementQueue, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue settlement: %w", err)
	}
	return nil
}
