package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/care_reporting_system/internal/config"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/service/mocks"
	"github.com/shenikar/care_reporting_system/internal/trigger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSessionToken = "session-token"

type testHandlerDeps struct {
	incidents *mocks.MockIncidentService
	accounts  *mocks.MockAccountService
	triggers  *trigger.Registry
	router    *gin.Engine
}

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T) testHandlerDeps {
	ctrl := gomock.NewController(t)
	incidentMock := mocks.NewMockIncidentService(ctrl)
	accountMock := mocks.NewMockAccountService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys:                []string{"test-api-key"},
		StatsTimeWindowMinutes: 60,
		MaxEvidenceBytes:       1 << 20,
	}
	triggers := trigger.NewRegistry(2*time.Second, 6, 5*time.Minute)

	handler := NewHandler(incidentMock, accountMock, triggers, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return testHandlerDeps{
		incidents: incidentMock,
		accounts:  accountMock,
		triggers:  triggers,
		router:    router,
	}
}

// expectSession разрешает тестовый токен сессии в userID
func (d testHandlerDeps) expectSession(userID uuid.UUID) {
	d.accounts.EXPECT().Authenticate(gomock.Any(), testSessionToken).Return(userID, nil).AnyTimes()
}

func sessionHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testSessionToken}
}

func apiKeyHeader() map[string]string {
	return map[string]string{"X-API-Key": "test-api-key"}
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// multipartVideo собирает тело запроса с файлом в поле field и,
// если captureID не пуст, с идентификатором захвата
func multipartVideo(t *testing.T, field, filename, content, captureID string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if captureID != "" {
		require.NoError(t, writer.WriteField(CaptureFormField, captureID))
	}
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postReport(router *gin.Engine, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+testSessionToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func submitVideo(t *testing.T, router *gin.Engine, field, captureID string) *httptest.ResponseRecorder {
	body, contentType := multipartVideo(t, field, "clip.mp4", "fake video bytes", captureID)
	return postReport(router, body, contentType)
}

// fireGesture отправляет серию сигналов до срабатывания и возвращает capture_id
func fireGesture(t *testing.T, router *gin.Engine) string {
	t.Helper()
	var resp TriggerSignalResponse
	for i := 0; i < 6; i++ {
		w := makeRequest(router, http.MethodPost, "/api/v1/trigger/signal", nil, sessionHeader())
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	require.True(t, resp.Triggered)
	require.NotNil(t, resp.CaptureID)
	return resp.CaptureID.String()
}

func TestSessionAuth_MissingToken(t *testing.T) {
	d := newTestHandler(t)
	d.accounts.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/mine", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "User is not logged in")
}

func TestSessionAuth_UnknownToken(t *testing.T) {
	d := newTestHandler(t)
	d.accounts.EXPECT().Authenticate(gomock.Any(), "expired").Return(uuid.Nil, models.ErrNotAuthenticated).Times(1)
	d.incidents.EXPECT().ListMyIncidents(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/mine", nil, map[string]string{"Authorization": "Bearer expired"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerSignal_FiresOnSixthRapidSignal(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())

	var resp TriggerSignalResponse
	for i := 1; i <= 6; i++ {
		w := makeRequest(d.router, http.MethodPost, "/api/v1/trigger/signal", nil, sessionHeader())
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, i, resp.Count)
		if i < 6 {
			assert.False(t, resp.Triggered)
			assert.Nil(t, resp.CaptureID)
		}
	}

	assert.True(t, resp.Triggered)
	require.NotNil(t, resp.CaptureID)
	assert.NotEqual(t, uuid.Nil, *resp.CaptureID)
}

func TestSubmitReport_Success(t *testing.T) {
	d := newTestHandler(t)
	reporterID := uuid.New()
	d.expectSession(reporterID)
	stored := &models.Incident{
		ID:             uuid.New(),
		ReporterID:     reporterID,
		Latitude:       -22.97,
		Longitude:      30.45,
		StationName:    config.DefaultStationName,
		StationContact: config.DefaultStationContact,
		EvidenceURL:    "https://cdn.example.org/videos/a.mp4",
		CreatedAt:      "2024-05-10 14:30:05",
	}

	d.incidents.EXPECT().
		SubmitReport(gomock.Any(), reporterID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, evidence *models.Evidence) (*models.Incident, error) {
			data, err := io.ReadAll(evidence.Body)
			require.NoError(t, err)
			assert.Equal(t, "fake video bytes", string(data))
			assert.Equal(t, "clip.mp4", evidence.Filename)
			return stored, nil
		}).Times(1)

	captureID := fireGesture(t, d.router)
	w := submitVideo(t, d.router, EvidenceFormField, captureID)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Incident reported successfully.", resp.Message)
	assert.Equal(t, stored.ID, resp.Incident.ID)
	assert.Equal(t, stored.EvidenceURL, resp.Incident.EvidenceURL)
}

func TestSubmitReport_MissingVideo(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	d.incidents.EXPECT().SubmitReport(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	captureID := fireGesture(t, d.router)
	w := submitVideo(t, d.router, "photo", captureID)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please select a video to report.")
}

func TestSubmitReport_WithoutGestureIsRejected(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	d.incidents.EXPECT().SubmitReport(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := submitVideo(t, d.router, EvidenceFormField, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Activation gesture is required before reporting.")
}

func TestSubmitReport_UnknownCaptureIsRejected(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	d.incidents.EXPECT().SubmitReport(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := submitVideo(t, d.router, EvidenceFormField, uuid.NewString())

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Activation gesture expired. Please repeat it.")
}

func TestSubmitReport_CaptureIsSingleUse(t *testing.T) {
	d := newTestHandler(t)
	reporterID := uuid.New()
	d.expectSession(reporterID)
	d.incidents.EXPECT().
		SubmitReport(gomock.Any(), reporterID, gomock.Any()).
		Return(&models.Incident{ID: uuid.New(), ReporterID: reporterID}, nil).
		Times(1)

	captureID := fireGesture(t, d.router)
	first := submitVideo(t, d.router, EvidenceFormField, captureID)
	second := submitVideo(t, d.router, EvidenceFormField, captureID)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestSubmitReport_EvidenceTooLarge(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	d.incidents.EXPECT().SubmitReport(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	captureID := fireGesture(t, d.router)
	// Лимит в тестовой конфигурации - 1 MiB
	body, contentType := multipartVideo(t, EvidenceFormField, "clip.mp4", strings.Repeat("v", 2<<20), captureID)
	w := postReport(d.router, body, contentType)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "Video is too large.")
}

func TestSubmitReport_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"upload failed", fmt.Errorf("service: %w: timeout", models.ErrUploadFailed), http.StatusBadGateway, "Video upload failed."},
		{"permission denied", fmt.Errorf("service: %w", models.ErrPermissionDenied), http.StatusForbidden, "Location permission not granted"},
		{"no location", fmt.Errorf("service: %w", models.ErrLocationNotAvailable), http.StatusUnprocessableEntity, "Location not available"},
		{"location lookup", fmt.Errorf("service: %w: redis", models.ErrLocationLookupFailed), http.StatusServiceUnavailable, "Failed to get location"},
		{"profile read", fmt.Errorf("service: %w: db", models.ErrProfileUnavailable), http.StatusServiceUnavailable, "Failed to retrieve user data"},
		{"write failed", fmt.Errorf("service: %w: db", models.ErrWriteFailed), http.StatusInternalServerError, "Failed to store incident data."},
		{"canceled", fmt.Errorf("service: report aborted: %w", context.Canceled), http.StatusRequestTimeout, "Report was canceled."},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestHandler(t)
			d.expectSession(uuid.New())
			d.incidents.EXPECT().SubmitReport(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err).Times(1)

			captureID := fireGesture(t, d.router)
			w := submitVideo(t, d.router, EvidenceFormField, captureID)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestListMyIncidents_Success(t *testing.T) {
	d := newTestHandler(t)
	reporterID := uuid.New()
	d.expectSession(reporterID)
	expected := []*models.Incident{
		{ID: uuid.New(), ReporterID: reporterID, CreatedAt: "2024-05-10 14:30:05"},
		{ID: uuid.New(), ReporterID: reporterID, CreatedAt: "2024-05-09 08:00:00"},
	}

	d.incidents.EXPECT().ListMyIncidents(gomock.Any(), reporterID, 1, 10).Return(expected, nil).Times(1)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/mine?page=1&pageSize=10", nil, sessionHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
	assert.Equal(t, expected[0].ID, resp[0].ID)
}

func TestListMyIncidents_ServiceError(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	d.incidents.EXPECT().ListMyIncidents(gomock.Any(), gomock.Any(), 1, 20).Return(nil, errors.New("db down")).Times(1)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/mine", nil, sessionHeader())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to retrieve incidents.")
}

func TestGetIncident_Success(t *testing.T) {
	d := newTestHandler(t)
	reporterID := uuid.New()
	d.expectSession(reporterID)
	incident := &models.Incident{ID: uuid.New(), ReporterID: reporterID, StationName: config.DefaultStationName}

	d.incidents.EXPECT().GetIncident(gomock.Any(), incident.ID).Return(incident, nil).Times(1)

	w := makeRequest(d.router, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%s", incident.ID), nil, sessionHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incident.ID, resp.ID)
	assert.Equal(t, config.DefaultStationName, resp.StationName)
}

func TestGetIncident_OtherReporterIsHidden(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	incident := &models.Incident{ID: uuid.New(), ReporterID: uuid.New()}

	d.incidents.EXPECT().GetIncident(gomock.Any(), incident.ID).Return(incident, nil).Times(1)

	w := makeRequest(d.router, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%s", incident.ID), nil, sessionHeader())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIncident_InvalidID(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	d.incidents.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(d.router, http.MethodGet, "/api/v1/incidents/invalid-uuid", nil, sessionHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	d := newTestHandler(t)
	d.expectSession(uuid.New())
	id := uuid.New()

	d.incidents.EXPECT().GetIncident(gomock.Any(), id).Return(nil, fmt.Errorf("service: %w", models.ErrNotFound)).Times(1)

	w := makeRequest(d.router, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%s", id), nil, sessionHeader())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestDeleteIncident_Success(t *testing.T) {
	d := newTestHandler(t)
	reporterID := uuid.New()
	d.expectSession(reporterID)
	id := uuid.New()

	d.incidents.EXPECT().DeleteIncident(gomock.Any(), id, reporterID).Return(nil).Times(1)

	w := makeRequest(d.router, http.MethodDelete, fmt.Sprintf("/api/v1/incidents/%s", id), nil, sessionHeader())

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteIncident_NotOwned(t *testing.T) {
	d := newTestHandler(t)
	reporterID := uuid.New()
	d.expectSession(reporterID)
	id := uuid.New()

	d.incidents.EXPECT().DeleteIncident(gomock.Any(), id, reporterID).Return(fmt.Errorf("service: %w", models.ErrNotFound)).Times(1)

	w := makeRequest(d.router, http.MethodDelete, fmt.Sprintf("/api/v1/incidents/%s", id), nil, sessionHeader())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStationListIncidents_RequiresAPIKey(t *testing.T) {
	d := newTestHandler(t)
	d.incidents.EXPECT().ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/station/incidents", nil, map[string]string{"X-API-Key": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestStationListIncidents_Success(t *testing.T) {
	d := newTestHandler(t)
	expected := []*models.Incident{{ID: uuid.New()}, {ID: uuid.New()}}

	d.incidents.EXPECT().ListIncidents(gomock.Any(), 2, 5).Return(expected, nil).Times(1)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/station/incidents?page=2&pageSize=5", nil, apiKeyHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestStationFindNearby_Success(t *testing.T) {
	d := newTestHandler(t)
	expected := []*models.Incident{{ID: uuid.New(), Latitude: -22.97, Longitude: 30.45}}

	d.incidents.EXPECT().FindNearby(gomock.Any(), -22.97, 30.45, 500).Return(expected, nil).Times(1)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/station/incidents/nearby?lat=-22.97&lon=30.45&radius=500", nil, apiKeyHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestStationFindNearby_ValidationError(t *testing.T) {
	d := newTestHandler(t)
	d.incidents.EXPECT().FindNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/station/incidents/nearby?lat=120&lon=30.45&radius=500", nil, apiKeyHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStationStats_Success(t *testing.T) {
	d := newTestHandler(t)
	d.incidents.EXPECT().GetStats(gomock.Any()).Return(&models.IncidentStats{WindowMinutes: 60, IncidentCount: 4, ReportingDevices: 9}, nil).Times(1)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/station/stats", nil, apiKeyHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatsResponse{WindowMinutes: 60, IncidentCount: 4, ReportingDevices: 9}, resp)
}

func TestHealthCheck(t *testing.T) {
	d := newTestHandler(t)

	w := makeRequest(d.router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
