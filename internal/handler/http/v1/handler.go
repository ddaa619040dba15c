package v1

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/care_reporting_system/internal/config"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/service"
	"github.com/shenikar/care_reporting_system/internal/trigger"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService service.IncidentService
	accountService  service.AccountService
	triggers        *trigger.Registry
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(
	incidentService service.IncidentService,
	accountService service.AccountService,
	triggers *trigger.Registry,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		incidentService: incidentService,
		accountService:  accountService,
		triggers:        triggers,
		logger:          logger,
		validate:        newValidator(),
		cfg:             cfg,
	}
}

// errorMapping сопоставляет ошибку сервиса с HTTP статусом и коротким сообщением
type errorMapping struct {
	err     error
	status  int
	message string
}

// Более конкретные ошибки стоят раньше общих
var reportErrorMappings = []errorMapping{
	{models.ErrNotAuthenticated, http.StatusUnauthorized, "User is not logged in"},
	{models.ErrMissingEvidence, http.StatusBadRequest, "Please select a video to report."},
	{models.ErrUploadFailed, http.StatusBadGateway, "Video upload failed."},
	{models.ErrPermissionDenied, http.StatusForbidden, "Location permission not granted"},
	{models.ErrLocationNotAvailable, http.StatusUnprocessableEntity, "Location not available"},
	{models.ErrLocationLookupFailed, http.StatusServiceUnavailable, "Failed to get location"},
	{models.ErrProfileUnavailable, http.StatusServiceUnavailable, "Failed to retrieve user data"},
	{models.ErrWriteFailed, http.StatusInternalServerError, "Failed to store incident data."},
	{context.Canceled, http.StatusRequestTimeout, "Report was canceled."},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Report timed out."},
}

func mapError(err error, mappings []errorMapping) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// bindAndValidate разбирает JSON тело и проверяет его. При ошибке ответ уже отправлен.
func (h *Handler) bindAndValidate(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return page, pageSize
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
