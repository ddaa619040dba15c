package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/service"
)

// PositionRepository хранит историю координат в PostgreSQL и последнюю
// известную точку каждого устройства в Redis
type PositionRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewPositionRepository(db *pgxpool.Pool, redisClient *redis.Client) service.PositionStore {
	return &PositionRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// SavePosition сохраняет координаты в историю и обновляет последнюю точку
func (r *PositionRepository) SavePosition(ctx context.Context, fix *models.PositionFix) error {
	// Без разрешения координат нет, точка сохраняется как NULL
	query := `
		INSERT INTO position_reports (user_id, permission_granted, location, reported_at)
		VALUES (
			$1, $2,
			CASE WHEN $2 THEN ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography END,
			$5
		)
		RETURNING id;
	`
	err := r.db.QueryRow(ctx, query,
		fix.UserID,
		fix.PermissionGranted,
		fix.Longitude,
		fix.Latitude,
		fix.ReportedAt,
	).Scan(&fix.ID)
	if err != nil {
		return fmt.Errorf("failed to save position report: %w", err)
	}

	val, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	if err := r.redisClient.Set(ctx, positionKey(fix.UserID), val, 0).Err(); err != nil {
		return fmt.Errorf("failed to set last known position: %w", err)
	}
	return nil
}

// LastKnown возвращает последнюю известную точку или nil, если ее нет
func (r *PositionRepository) LastKnown(ctx context.Context, userID uuid.UUID) (*models.PositionFix, error) {
	val, err := r.redisClient.Get(ctx, positionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last known position: %w", err)
	}

	fix := &models.PositionFix{}
	if err := json.Unmarshal(val, fix); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last known position: %w", err)
	}
	return fix, nil
}

// CountReportingDevices возвращает количество уникальных пользователей, приславших координаты
func (r *PositionRepository) CountReportingDevices(ctx context.Context, minutes int) (int, error) {
	query := `
		SELECT COUNT(DISTINCT user_id)
		FROM position_reports
		WHERE reported_at >= NOW() - ($1 * INTERVAL '1 minute');
	`
	var count int
	if err := r.db.QueryRow(ctx, query, minutes).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reporting devices: %w", err)
	}
	return count, nil
}

func positionKey(userID uuid.UUID) string {
	return fmt.Sprintf("position:%s", userID.String())
}
