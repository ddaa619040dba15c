package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/care_reporting_system/internal/config"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// EvidenceKeyPrefix - каталог хранилища для видео доказательств
const EvidenceKeyPrefix = "videos/"

// IncidentRepository определяет контракт для работы с бд обращений
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	Delete(ctx context.Context, id, reporterID uuid.UUID) error
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	ListByReporter(ctx context.Context, reporterID uuid.UUID, page, pageSize int) ([]*models.Incident, error)
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	CountSince(ctx context.Context, minutes int) (int, error)
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// BlobStore загружает доказательства и возвращает публичную ссылку на них
type BlobStore interface {
	Upload(ctx context.Context, key string, evidence *models.Evidence) (string, error)
}

// PositionStore хранит последние известные координаты устройств
type PositionStore interface {
	SavePosition(ctx context.Context, fix *models.PositionFix) error
	LastKnown(ctx context.Context, userID uuid.UUID) (*models.PositionFix, error)
	CountReportingDevices(ctx context.Context, minutes int) (int, error)
}

// IncidentService определяет контракт для отправки и просмотра обращений
type IncidentService interface {
	SubmitReport(ctx context.Context, reporterID uuid.UUID, evidence *models.Evidence) (*models.Incident, error)
	ReportPosition(ctx context.Context, fix *models.PositionFix) error
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	DeleteIncident(ctx context.Context, id, reporterID uuid.UUID) error
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	ListMyIncidents(ctx context.Context, reporterID uuid.UUID, page, pageSize int) ([]*models.Incident, error)
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	GetStats(ctx context.Context) (*models.IncidentStats, error)
}

type incidentService struct {
	repo      IncidentRepository
	users     UserRepository
	positions PositionStore
	blobs     BlobStore
	publisher webhook.WebhookPublisher
	logger    *logrus.Logger
	cfg       *config.Config
	now       func() time.Time
	newKey    func() string
}

func NewIncidentService(
	repo IncidentRepository,
	users UserRepository,
	positions PositionStore,
	blobs BlobStore,
	publisher webhook.WebhookPublisher,
	logger *logrus.Logger,
	cfg *config.Config,
) IncidentService {
	return &incidentService{
		repo:      repo,
		users:     users,
		positions: positions,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newKey: func() string {
			return EvidenceKeyPrefix + uuid.NewString() + ".mp4"
		},
	}
}

// SubmitReport выполняет конвейер отправки обращения: загрузка доказательств,
// определение координат, чтение контактов из профиля, сохранение записи.
// Этапы выполняются строго по порядку, при ошибке любого этапа конвейер
// прерывается без повторов.
func (s *incidentService) SubmitReport(ctx context.Context, reporterID uuid.UUID, evidence *models.Evidence) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "SubmitReport",
		"reporter_id": reporterID,
	})

	if reporterID == uuid.Nil {
		log.Warn("Report submitted without authenticated identity")
		return nil, fmt.Errorf("service: %w", models.ErrNotAuthenticated)
	}
	if evidence == nil || evidence.Body == nil {
		log.Warn("Report submitted without evidence")
		return nil, fmt.Errorf("service: %w", models.ErrMissingEvidence)
	}
	log.Info("Starting incident submission")

	evidenceURL, err := s.uploadEvidence(ctx, evidence)
	if err != nil {
		log.WithError(err).Error("Evidence upload failed")
		return nil, err
	}
	log = log.WithField("evidence_url", evidenceURL)

	fix, err := s.resolvePosition(ctx, reporterID)
	if err != nil {
		log.WithError(err).Warn("Position resolution failed")
		return nil, err
	}

	contact1, contact2, err := s.emergencyContacts(ctx, reporterID)
	if err != nil {
		log.WithError(err).Error("Failed to read reporter profile")
		return nil, err
	}

	incident := &models.Incident{
		ReporterID:        reporterID,
		Latitude:          fix.Latitude,
		Longitude:         fix.Longitude,
		StationName:       s.cfg.StationName,
		StationContact:    s.cfg.StationContact,
		EvidenceURL:       evidenceURL,
		EmergencyContact1: contact1,
		EmergencyContact2: contact2,
		CreatedAt:         s.now().Format(models.IncidentTimeLayout),
	}

	if err := s.persist(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to store incident")
		return nil, err
	}
	log.WithField("incident_id", incident.ID).Info("Incident reported successfully")

	event := webhook.WebhookEvent{
		Type:      webhook.EventIncidentReported,
		UserID:    reporterID.String(),
		Timestamp: s.now(),
		Incident:  incident,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Обращение уже сохранено, уведомление участка не влияет на результат
		log.WithError(err).Error("Failed to queue station notification")
	}

	return incident, nil
}

func (s *incidentService) uploadEvidence(ctx context.Context, evidence *models.Evidence) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("service: report aborted before upload: %w", err)
	}
	stageCtx, cancel := withStageTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	if evidence.ContentType == "" {
		evidence.ContentType = models.DefaultEvidenceContentType
	}
	url, err := s.blobs.Upload(stageCtx, s.newKey(), evidence)
	if err != nil {
		return "", fmt.Errorf("service: %w: %w", models.ErrUploadFailed, err)
	}
	return url, nil
}

func (s *incidentService) resolvePosition(ctx context.Context, reporterID uuid.UUID) (*models.PositionFix, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("service: report aborted before position resolution: %w", err)
	}
	stageCtx, cancel := withStageTimeout(ctx, s.cfg.PipelineStageTimeout)
	defer cancel()

	fix, err := s.positions.LastKnown(stageCtx, reporterID)
	if err != nil {
		return nil, fmt.Errorf("service: %w: %w", models.ErrLocationLookupFailed, err)
	}
	if fix == nil {
		return nil, fmt.Errorf("service: %w", models.ErrLocationNotAvailable)
	}
	if !fix.PermissionGranted {
		return nil, fmt.Errorf("service: %w", models.ErrPermissionDenied)
	}
	return fix, nil
}

// emergencyContacts возвращает номера ближайших родственников из профиля.
// Обращение ссылается на пользователя, поэтому без профиля запись невозможна.
func (s *incidentService) emergencyContacts(ctx context.Context, reporterID uuid.UUID) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("service: report aborted before profile read: %w", err)
	}
	stageCtx, cancel := withStageTimeout(ctx, s.cfg.PipelineStageTimeout)
	defer cancel()

	user, err := s.users.GetByID(stageCtx, reporterID)
	if err != nil {
		return "", "", fmt.Errorf("service: %w: %w", models.ErrProfileUnavailable, err)
	}
	return user.NextOfKinPhone1, user.NextOfKinPhone2, nil
}

func (s *incidentService) persist(ctx context.Context, incident *models.Incident) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("service: report aborted before persistence: %w", err)
	}
	stageCtx, cancel := withStageTimeout(ctx, s.cfg.PipelineStageTimeout)
	defer cancel()

	if err := s.repo.Create(stageCtx, incident); err != nil {
		return fmt.Errorf("service: %w: %w", models.ErrWriteFailed, err)
	}
	return nil
}

func withStageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// ReportPosition сохраняет координаты, присланные устройством
func (s *incidentService) ReportPosition(ctx context.Context, fix *models.PositionFix) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":            "incident",
		"method":             "ReportPosition",
		"user_id":            fix.UserID,
		"permission_granted": fix.PermissionGranted,
	})
	log.Debug("Saving device position")

	if fix.ReportedAt.IsZero() {
		fix.ReportedAt = s.now()
	}
	if err := s.positions.SavePosition(ctx, fix); err != nil {
		log.WithError(err).Error("Failed to save device position")
		return fmt.Errorf("service: could not save position: %w", err)
	}
	return nil
}

// GetIncident получает обращение по ID, сначала из кэша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident from cache")
	}
	if cached != nil {
		return cached, nil
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}

	log.Info("Incident fetched successfully")
	return incident, nil
}

// DeleteIncident удаляет обращение, принадлежащее заявителю
func (s *incidentService) DeleteIncident(ctx context.Context, id, reporterID uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "DeleteIncident",
		"incident_id": id,
		"reporter_id": reporterID,
	})
	log.Info("Attempting to delete incident")

	if err := s.repo.Delete(ctx, id, reporterID); err != nil {
		log.WithError(err).Warn("Failed to delete incident in repository")
		return fmt.Errorf("service: could not delete incident: %w", err)
	}

	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}

	log.Info("Incident deleted successfully")
	return nil
}

// ListIncidents возвращает все обращения с пагинацией
func (s *incidentService) ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	page, pageSize = normalizePage(page, pageSize)

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"page":      page,
		"page_size": pageSize,
	})
	log.Info("Listing incidents")

	incidents, err := s.repo.ListIncidents(ctx, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// ListMyIncidents возвращает обращения заявителя, новые первыми
func (s *incidentService) ListMyIncidents(ctx context.Context, reporterID uuid.UUID, page, pageSize int) ([]*models.Incident, error) {
	page, pageSize = normalizePage(page, pageSize)

	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ListMyIncidents",
		"reporter_id": reporterID,
		"page":        page,
		"page_size":   pageSize,
	})

	incidents, err := s.repo.ListByReporter(ctx, reporterID, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list reporter incidents from repository")
		return nil, fmt.Errorf("service: could not list reporter incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Reporter incidents listed successfully")
	return incidents, nil
}

// FindNearby находит обращения в радиусе от точки
func (s *incidentService) FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":       "incident",
		"method":        "FindNearby",
		"radius_meters": radiusMeters,
	})

	incidents, err := s.repo.FindNearby(ctx, lat, lon, radiusMeters)
	if err != nil {
		log.WithError(err).Error("Failed to find nearby incidents")
		return nil, fmt.Errorf("service: failed to find nearby incidents: %w", err)
	}
	return incidents, nil
}

// GetStats возвращает количество обращений и устройств за окно статистики
func (s *incidentService) GetStats(ctx context.Context) (*models.IncidentStats, error) {
	window := s.cfg.StatsTimeWindowMinutes
	log := s.logger.WithFields(logrus.Fields{
		"service":        "incident",
		"method":         "GetStats",
		"window_minutes": window,
	})

	incidents, err := s.repo.CountSince(ctx, window)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents")
		return nil, fmt.Errorf("service: could not count incidents: %w", err)
	}
	devices, err := s.positions.CountReportingDevices(ctx, window)
	if err != nil {
		log.WithError(err).Error("Failed to count reporting devices")
		return nil, fmt.Errorf("service: could not count reporting devices: %w", err)
	}

	return &models.IncidentStats{
		WindowMinutes:    window,
		IncidentCount:    incidents,
		ReportingDevices: devices,
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
