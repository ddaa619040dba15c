package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/service"
)

const (
	sessionKeyPrefix = "session:"
	resetKeyPrefix   = "password_reset:"
	tokenBytes       = 32
)

// SessionRepository хранит токены сессий и сброса пароля в Redis
type SessionRepository struct {
	redisClient *redis.Client
	sessionTTL  time.Duration
	resetTTL    time.Duration
}

func NewSessionRepository(redisClient *redis.Client, sessionTTL, resetTTL time.Duration) service.SessionStore {
	return &SessionRepository{
		redisClient: redisClient,
		sessionTTL:  sessionTTL,
		resetTTL:    resetTTL,
	}
}

// CreateSession выдает новый токен сессии
func (r *SessionRepository) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	return r.issue(ctx, sessionKeyPrefix, userID, r.sessionTTL)
}

// ResolveSession возвращает владельца токена
func (r *SessionRepository) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := r.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrNotAuthenticated
		}
		return uuid.Nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return parseOwner(val)
}

// RevokeSession удаляет токен сессии
func (r *SessionRepository) RevokeSession(ctx context.Context, token string) error {
	if err := r.redisClient.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CreateResetToken выдает одноразовый токен сброса пароля
func (r *SessionRepository) CreateResetToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return r.issue(ctx, resetKeyPrefix, userID, r.resetTTL)
}

// ConsumeResetToken атомарно извлекает и удаляет токен сброса
func (r *SessionRepository) ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := r.redisClient.GetDel(ctx, resetKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrInvalidResetToken
		}
		return uuid.Nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return parseOwner(val)
}

func (r *SessionRepository) issue(ctx context.Context, prefix string, userID uuid.UUID, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := r.redisClient.Set(ctx, prefix+token, userID.String(), ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parseOwner(val string) (uuid.UUID, error) {
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupted token owner %q: %w", val, err)
	}
	return id, nil
}
