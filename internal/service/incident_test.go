package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/care_reporting_system/internal/config"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/service/mocks"
	"github.com/shenikar/care_reporting_system/internal/webhook"
	webhook_mocks "github.com/shenikar/care_reporting_system/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2024, 5, 10, 14, 30, 5, 0, time.UTC)

type incidentMocks struct {
	repo      *mocks.MockIncidentRepository
	users     *mocks.MockUserRepository
	positions *mocks.MockPositionStore
	blobs     *mocks.MockBlobStore
	publisher *webhook_mocks.MockWebhookPublisher
}

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (*incidentService, incidentMocks) {
	ctrl := gomock.NewController(t)
	m := incidentMocks{
		repo:      mocks.NewMockIncidentRepository(ctrl),
		users:     mocks.NewMockUserRepository(ctrl),
		positions: mocks.NewMockPositionStore(ctrl),
		blobs:     mocks.NewMockBlobStore(ctrl),
		publisher: webhook_mocks.NewMockWebhookPublisher(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		StationName:            config.DefaultStationName,
		StationContact:         config.DefaultStationContact,
		PipelineStageTimeout:   time.Second,
		UploadTimeout:          time.Second,
		StatsTimeWindowMinutes: 60,
	}

	svc := NewIncidentService(m.repo, m.users, m.positions, m.blobs, m.publisher, logger, cfg).(*incidentService)
	svc.now = func() time.Time { return fixedNow }
	return svc, m
}

func testEvidence() *models.Evidence {
	return &models.Evidence{
		Filename: "clip.mp4",
		Size:     11,
		Body:     strings.NewReader("video-bytes"),
	}
}

func TestSubmitReport_Success(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	reporterID := uuid.New()
	incidentID := uuid.New()
	evidenceURL := "https://cdn.example.org/videos/abc.mp4"
	fix := &models.PositionFix{UserID: reporterID, PermissionGranted: true, Latitude: -22.9456, Longitude: 30.4850}
	profile := &models.User{ID: reporterID, NextOfKinPhone1: "0821234567", NextOfKinPhone2: "0837654321"}

	// Ожидания
	gomock.InOrder(
		m.blobs.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, key string, ev *models.Evidence) (string, error) {
				assert.True(t, strings.HasPrefix(key, EvidenceKeyPrefix))
				assert.True(t, strings.HasSuffix(key, ".mp4"))
				assert.Equal(t, models.DefaultEvidenceContentType, ev.ContentType)
				return evidenceURL, nil
			}).Times(1),
		m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(fix, nil).Times(1),
		m.users.EXPECT().GetByID(gomock.Any(), reporterID).Return(profile, nil).Times(1),
		m.repo.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, inc *models.Incident) error {
				// Симулируем, что БД присвоила ID
				inc.ID = incidentID
				return nil
			}).Times(1),
		m.publisher.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, event webhook.WebhookEvent) {
				assert.Equal(t, webhook.EventIncidentReported, event.Type)
				assert.Equal(t, reporterID.String(), event.UserID)
				assert.Equal(t, incidentID, event.Incident.ID)
			}).Return(nil).Times(1),
	)

	// Действие
	incident, err := svc.SubmitReport(ctx, reporterID, testEvidence())

	// Проверки
	require.NoError(t, err)
	expected := &models.Incident{
		ID:                incidentID,
		ReporterID:        reporterID,
		Latitude:          fix.Latitude,
		Longitude:         fix.Longitude,
		StationName:       "Thohoyandou Police Station",
		StationContact:    "thohoyandou.sc@saps.gov.za",
		EvidenceURL:       evidenceURL,
		EmergencyContact1: "0821234567",
		EmergencyContact2: "0837654321",
		CreatedAt:         "2024-05-10 14:30:05",
	}
	assert.Equal(t, expected, incident)
}

func TestSubmitReport_UploadFailure(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("s3 unavailable")).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), gomock.Any()).Times(0)
	m.users.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	incident, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, models.ErrUploadFailed)
}

func TestSubmitReport_PermissionDenied(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()
	fix := &models.PositionFix{UserID: reporterID, PermissionGranted: false}

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(fix, nil).Times(1)
	m.users.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestSubmitReport_LocationNotAvailable(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(nil, nil).Times(1)
	m.users.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrResourceUnavailable)
	assert.ErrorContains(t, err, "location not available")
	assert.ErrorIs(t, err, models.ErrLocationNotAvailable)
}

func TestSubmitReport_LocationLookupError(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(nil, errors.New("redis down")).Times(1)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrResourceUnavailable)
	assert.ErrorIs(t, err, models.ErrLocationLookupFailed)
}

func TestSubmitReport_MissingProfileStopsBeforeWrite(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()
	fix := &models.PositionFix{UserID: reporterID, PermissionGranted: true, Latitude: 1, Longitude: 2}

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(fix, nil).Times(1)
	m.users.EXPECT().GetByID(gomock.Any(), reporterID).Return(nil, fmt.Errorf("user %s: %w", reporterID, models.ErrNotFound)).Times(1)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProfileUnavailable)
	assert.NotErrorIs(t, err, models.ErrWriteFailed)
}

func TestSubmitReport_ProfileReadError(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()
	fix := &models.PositionFix{UserID: reporterID, PermissionGranted: true}

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(fix, nil).Times(1)
	m.users.EXPECT().GetByID(gomock.Any(), reporterID).Return(nil, errors.New("connection reset")).Times(1)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrResourceUnavailable)
	assert.ErrorContains(t, err, "failed to retrieve user data")
}

func TestSubmitReport_WriteFailure(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()
	fix := &models.PositionFix{UserID: reporterID, PermissionGranted: true}

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(fix, nil).Times(1)
	m.users.EXPECT().GetByID(gomock.Any(), reporterID).Return(&models.User{ID: reporterID}, nil).Times(1)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("insert failed")).Times(1)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrWriteFailed)
}

func TestSubmitReport_NotAuthenticated(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), uuid.Nil, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestSubmitReport_MissingEvidence(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(context.Background(), uuid.New(), nil)

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingEvidence)
}

func TestSubmitReport_CanceledScopeStopsBeforeNextStage(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())

	// Ожидания
	// Владелец запроса уходит во время загрузки
	m.blobs.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, *models.Evidence) (string, error) {
			cancel()
			return "https://cdn/videos/x.mp4", nil
		}).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), gomock.Any()).Times(0)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitReport(ctx, reporterID, testEvidence())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmitReport_NotificationFailureDoesNotFailReport(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	reporterID := uuid.New()
	fix := &models.PositionFix{UserID: reporterID, PermissionGranted: true}

	// Ожидания
	m.blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/videos/x.mp4", nil).Times(1)
	m.positions.EXPECT().LastKnown(gomock.Any(), reporterID).Return(fix, nil).Times(1)
	m.users.EXPECT().GetByID(gomock.Any(), reporterID).Return(&models.User{ID: reporterID}, nil).Times(1)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("queue down")).Times(1)

	// Действие
	incident, err := svc.SubmitReport(context.Background(), reporterID, testEvidence())

	// Проверки
	require.NoError(t, err)
	assert.NotNil(t, incident)
}

func TestReportPosition_StampsTime(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	fix := &models.PositionFix{UserID: uuid.New(), PermissionGranted: true, Latitude: 10, Longitude: 20}

	// Ожидания
	m.positions.EXPECT().
		SavePosition(ctx, fix).
		Do(func(_ context.Context, saved *models.PositionFix) {
			assert.Equal(t, fixedNow, saved.ReportedAt)
		}).Return(nil).Times(1)

	// Действие
	err := svc.ReportPosition(ctx, fix)

	// Проверки
	require.NoError(t, err)
}

func TestGetIncident_Success_FromCache(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{ID: incidentID, StationName: config.DefaultStationName}

	// Ожидания
	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(expectedIncident, nil).Times(1)
	m.repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	incident, err := svc.GetIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_Success_FromDB(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{ID: incidentID}

	// Ожидания
	// 1. Промах кеша
	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(nil, nil).Times(1)
	// 2. Попадание в БД
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(expectedIncident, nil).Times(1)
	// 3. Запись в кеш
	m.repo.EXPECT().SetIncidentCache(ctx, expectedIncident).Return(nil).Times(1)

	// Действие
	incident, err := svc.GetIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_NotFound(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	// Ожидания
	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(nil, nil).Times(1)
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(nil, models.ErrNotFound).Times(1)

	// Действие
	incident, err := svc.GetIncident(ctx, incidentID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorContains(t, err, "could not get incident")
}

func TestDeleteIncident_Success(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID, reporterID := uuid.New(), uuid.New()

	// Ожидания
	m.repo.EXPECT().Delete(ctx, incidentID, reporterID).Return(nil).Times(1)
	m.repo.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil).Times(1)

	// Действие
	err := svc.DeleteIncident(ctx, incidentID, reporterID)

	// Проверки
	require.NoError(t, err)
}

func TestDeleteIncident_NotFound(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID, reporterID := uuid.New(), uuid.New()

	// Ожидания
	m.repo.EXPECT().Delete(ctx, incidentID, reporterID).Return(models.ErrNotFound).Times(1)
	m.repo.EXPECT().InvalidateIncidentCache(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	err := svc.DeleteIncident(ctx, incidentID, reporterID)

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListIncidents_NormalizesPaging(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	expectedIncidents := []*models.Incident{{ID: uuid.New()}, {ID: uuid.New()}}

	// Ожидания
	m.repo.EXPECT().ListIncidents(ctx, 1, 20).Return(expectedIncidents, nil).Times(1)

	// Действие
	incidents, err := svc.ListIncidents(ctx, 0, 500)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncidents, incidents)
}

func TestListMyIncidents_Success(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()
	reporterID := uuid.New()
	expectedIncidents := []*models.Incident{{ID: uuid.New(), ReporterID: reporterID}}

	// Ожидания
	m.repo.EXPECT().ListByReporter(ctx, reporterID, 2, 10).Return(expectedIncidents, nil).Times(1)

	// Действие
	incidents, err := svc.ListMyIncidents(ctx, reporterID, 2, 10)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncidents, incidents)
}

func TestFindNearby_RepositoryError(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	m.repo.EXPECT().FindNearby(ctx, -22.9, 30.4, 500).Return(nil, errors.New("query failed")).Times(1)

	// Действие
	incidents, err := svc.FindNearby(ctx, -22.9, 30.4, 500)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incidents)
}

func TestGetStats_Success(t *testing.T) {
	// Подготовка
	svc, m := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	m.repo.EXPECT().CountSince(ctx, svc.cfg.StatsTimeWindowMinutes).Return(7, nil).Times(1)
	m.positions.EXPECT().CountReportingDevices(ctx, svc.cfg.StatsTimeWindowMinutes).Return(42, nil).Times(1)

	// Действие
	stats, err := svc.GetStats(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, &models.IncidentStats{WindowMinutes: 60, IncidentCount: 7, ReportingDevices: 42}, stats)
}
