package v1

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest DTO для регистрации
// @Description DTO для регистрации заявителя
type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required,alpha,max=100"`
	LastName        string `json:"last_name" validate:"required,alpha,max=100"`
	Email           string `json:"email" validate:"required,gmail"`
	Phone           string `json:"phone" validate:"required,za_phone"`
	NextOfKinPhone1 string `json:"next_of_kin_phone_1,omitempty" validate:"omitempty,za_phone"`
	NextOfKinPhone2 string `json:"next_of_kin_phone_2,omitempty" validate:"omitempty,za_phone"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginRequest DTO для входа
// @Description DTO для входа по почте и паролю
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse DTO с токеном сессии
// @Description DTO с токеном сессии
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user,omitempty"`
}

// PasswordResetRequest DTO для запроса сброса пароля
// @Description DTO для запроса сброса пароля
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest DTO для установки нового пароля
// @Description DTO для установки нового пароля по токену сброса
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// UpdateProfileRequest DTO для редактирования профиля. Почта не меняется.
// @Description DTO для редактирования профиля
type UpdateProfileRequest struct {
	FirstName       string `json:"first_name" validate:"required,alpha,max=100"`
	LastName        string `json:"last_name" validate:"required,alpha,max=100"`
	Phone           string `json:"phone" validate:"required,za_phone"`
	NextOfKinPhone1 string `json:"next_of_kin_phone_1,omitempty" validate:"omitempty,za_phone"`
	NextOfKinPhone2 string `json:"next_of_kin_phone_2,omitempty" validate:"omitempty,za_phone"`
}

// UserResponse DTO профиля
// @Description DTO профиля заявителя
type UserResponse struct {
	ID              uuid.UUID `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	NextOfKinPhone1 string    `json:"next_of_kin_phone_1,omitempty"`
	NextOfKinPhone2 string    `json:"next_of_kin_phone_2,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PositionRequest DTO с координатами устройства
// @Description DTO с координатами устройства. Без разрешения координаты не передаются.
type PositionRequest struct {
	PermissionGranted *bool    `json:"permission_granted" validate:"required"`
	Latitude          *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// TriggerSignalResponse DTO ответа на сигнал жеста
// @Description DTO ответа на сигнал жеста. capture_id выдается только при срабатывании.
type TriggerSignalResponse struct {
	Count     int        `json:"count"`
	Triggered bool       `json:"triggered"`
	CaptureID *uuid.UUID `json:"capture_id,omitempty"`
}

// IncidentResponse DTO для ответа с информацией об обращении
// @Description DTO для ответа с информацией об обращении
type IncidentResponse struct {
	ID                uuid.UUID `json:"id"`
	ReporterID        uuid.UUID `json:"reporter_id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	StationName       string    `json:"station_name"`
	StationContact    string    `json:"station_contact"`
	EvidenceURL       string    `json:"evidence_url"`
	EmergencyContact1 string    `json:"emergency_contact_1"`
	EmergencyContact2 string    `json:"emergency_contact_2"`
	CreatedAt         string    `json:"created_at"`
}

// ReportResponse DTO ответа на отправку обращения
// @Description DTO ответа на отправку обращения
type ReportResponse struct {
	Message  string            `json:"message"`
	Incident *IncidentResponse `json:"incident"`
}

// NearbyQuery параметры поиска обращений рядом с точкой
type NearbyQuery struct {
	Latitude     *float64 `form:"lat" validate:"required,latitude"`
	Longitude    *float64 `form:"lon" validate:"required,longitude"`
	RadiusMeters int      `form:"radius" validate:"required,gt=0,max=50000"`
}

// StatsResponse DTO для ответа со статистикой
// @Description DTO для ответа со статистикой
type StatsResponse struct {
	WindowMinutes    int `json:"window_minutes"`
	IncidentCount    int `json:"incident_count"`
	ReportingDevices int `json:"reporting_devices"`
}

// MessageResponse DTO с сообщением для пользователя
type MessageResponse struct {
	Message string `json:"message"`
}
