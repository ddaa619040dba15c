package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/care_reporting_system/internal/models"
)

const (
	webhookQueueKey = "webhook_events"
)

// EventType - тип уведомления
type EventType string

const (
	// EventIncidentReported - сохранено новое обращение, уведомляем участок
	EventIncidentReported EventType = "incident.reported"
	// EventPasswordReset - запрошен сброс пароля, доставка письма со ссылкой
	EventPasswordReset EventType = "password.reset"
)

// WebhookEvent - структура для данных вебхука
type WebhookEvent struct {
	Type       EventType        `json:"type"`
	UserID     string           `json:"user_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Incident   *models.Incident `json:"incident,omitempty"`
	Email      string           `json:"email,omitempty"`
	ResetToken string           `json:"reset_token,omitempty"`
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event WebhookEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH + BRPOP у воркера дают FIFO
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}
