package models

import (
	"time"

	"github.com/google/uuid"
)

// PositionFix - последнее известное местоположение устройства пользователя
type PositionFix struct {
	ID                int64     `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	PermissionGranted bool      `json:"permission_granted"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	ReportedAt        time.Time `json:"reported_at"`
}
