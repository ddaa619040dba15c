package v1

import (
	"github.com/google/uuid"
	"github.com/shenikar/care_reporting_system/internal/models"
)

// RegisterRequestToUser преобразует DTO регистрации в доменную модель
func RegisterRequestToUser(dto RegisterRequest) *models.User {
	return &models.User{
		FirstName:       dto.FirstName,
		LastName:        dto.LastName,
		Email:           dto.Email,
		Phone:           dto.Phone,
		NextOfKinPhone1: dto.NextOfKinPhone1,
		NextOfKinPhone2: dto.NextOfKinPhone2,
	}
}

// UpdateProfileRequestToUser преобразует DTO редактирования профиля в доменную модель
func UpdateProfileRequestToUser(id uuid.UUID, dto UpdateProfileRequest) *models.User {
	return &models.User{
		ID:              id,
		FirstName:       dto.FirstName,
		LastName:        dto.LastName,
		Phone:           dto.Phone,
		NextOfKinPhone1: dto.NextOfKinPhone1,
		NextOfKinPhone2: dto.NextOfKinPhone2,
	}
}

func ModelToUserResponse(model *models.User) *UserResponse {
	if model == nil {
		return nil
	}
	return &UserResponse{
		ID:              model.ID,
		FirstName:       model.FirstName,
		LastName:        model.LastName,
		Email:           model.Email,
		Phone:           model.Phone,
		NextOfKinPhone1: model.NextOfKinPhone1,
		NextOfKinPhone2: model.NextOfKinPhone2,
		CreatedAt:       model.CreatedAt,
	}
}

// PositionRequestToFix преобразует DTO координат в доменную модель
func PositionRequestToFix(userID uuid.UUID, dto PositionRequest) *models.PositionFix {
	fix := &models.PositionFix{
		UserID:            userID,
		PermissionGranted: dto.PermissionGranted != nil && *dto.PermissionGranted,
	}
	if fix.PermissionGranted {
		fix.Latitude = *dto.Latitude
		fix.Longitude = *dto.Longitude
	}
	return fix
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:                model.ID,
		ReporterID:        model.ReporterID,
		Latitude:          model.Latitude,
		Longitude:         model.Longitude,
		StationName:       model.StationName,
		StationContact:    model.StationContact,
		EvidenceURL:       model.EvidenceURL,
		EmergencyContact1: model.EmergencyContact1,
		EmergencyContact2: model.EmergencyContact2,
		CreatedAt:         model.CreatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelToStatsResponse(model *models.IncidentStats) StatsResponse {
	return StatsResponse{
		WindowMinutes:    model.WindowMinutes,
		IncidentCount:    model.IncidentCount,
		ReportingDevices: model.ReportingDevices,
	}
}
