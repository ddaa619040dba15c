package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// EvidenceFormField - имя поля multipart формы с видео
	EvidenceFormField = "video"
	// CaptureFormField - идентификатор захвата, выданный при срабатывании жеста
	CaptureFormField = "capture_id"
)

// @Summary Register an activation signal
// @Description Counts a discrete input event for the current session. The response carries a capture_id only on the signal that completes the gesture.
// @Tags Trigger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} TriggerSignalResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /trigger/signal [post]
func (h *Handler) triggerSignal(c *gin.Context) {
	result := h.triggers.Signal(currentSessionToken(c))

	resp := TriggerSignalResponse{Count: result.Count, Triggered: result.Triggered}
	if result.Triggered {
		captureID := result.CaptureID
		resp.CaptureID = &captureID
		h.logger.WithFields(logrus.Fields{
			"method":     "triggerSignal",
			"user_id":    currentUserID(c),
			"capture_id": captureID,
		}).Info("Activation gesture completed")
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Report an incident
// @Description Uploads the selected video, attaches the last known position and emergency contacts, and stores the incident. The capture_id issued by the activation gesture is required and is accepted once.
// @Tags Incidents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param video formData file true "Video evidence"
// @Param capture_id formData string true "Capture ID from the activation gesture"
// @Success 201 {object} ReportResponse
// @Failure 400 {object} map[string]string "No video selected or capture_id missing"
// @Failure 401 {object} map[string]string "User is not logged in"
// @Failure 403 {object} map[string]string "Location permission not granted"
// @Failure 409 {object} map[string]string "Activation gesture expired or already used"
// @Failure 413 {object} map[string]string "Video is too large"
// @Failure 422 {object} map[string]string "Location not available"
// @Failure 500 {object} map[string]string "Failed to store incident data"
// @Failure 502 {object} map[string]string "Video upload failed"
// @Router /incidents [post]
func (h *Handler) submitReport(c *gin.Context) {
	reporterID := currentUserID(c)
	log := h.logger.WithField("method", "submitReport").WithField("reporter_id", reporterID)

	if h.cfg.MaxEvidenceBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxEvidenceBytes)
	}

	fileHeader, err := c.FormFile(EvidenceFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.WithError(err).Warn("Evidence exceeds size limit")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Video is too large."})
			return
		}
		log.WithError(err).Warn("No evidence in request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select a video to report."})
		return
	}

	// Отправка возможна только после срабатывания жеста
	captureID, err := uuid.Parse(c.PostForm(CaptureFormField))
	if err != nil {
		log.WithError(err).Warn("Report without capture id")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Activation gesture is required before reporting."})
		return
	}
	if !h.triggers.Consume(currentSessionToken(c), captureID) {
		log.WithField("capture_id", captureID).Warn("Unknown, expired or used capture id")
		c.JSON(http.StatusConflict, gin.H{"error": "Activation gesture expired. Please repeat it."})
		return
	}
	log = log.WithField("capture_id", captureID)

	file, err := fileHeader.Open()
	if err != nil {
		log.WithError(err).Error("Failed to open uploaded evidence")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select a video to report."})
		return
	}
	defer file.Close()

	evidence := &models.Evidence{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	}

	incident, err := h.incidentService.SubmitReport(c.Request.Context(), reporterID, evidence)
	if err != nil {
		status, message := mapError(err, reportErrorMappings)
		log.WithError(err).WithField("status", status).Warn("Incident report failed")
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusCreated, ReportResponse{
		Message:  "Incident reported successfully.",
		Incident: ModelToIncidentResponse(incident),
	})
}

// @Summary List own incidents
// @Description Get a paginated list of the current reporter's incidents, newest first.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to retrieve incidents"
// @Router /incidents/mine [get]
func (h *Handler) listMyIncidents(c *gin.Context) {
	reporterID := currentUserID(c)
	log := h.logger.WithField("method", "listMyIncidents").WithField("reporter_id", reporterID)
	page, pageSize := pagination(c)

	incidents, err := h.incidentService.ListMyIncidents(c.Request.Context(), reporterID, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list reporter incidents from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve incidents."})
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get own incident by ID
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	reporterID := currentUserID(c)
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		log.WithError(err).Error("Failed to get incident from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	// Чужие обращения для заявителя не существуют
	if incident.ReporterID != reporterID {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Delete own incident
// @Tags Incidents
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [delete]
func (h *Handler) deleteIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "deleteIncident").WithField("id", id)

	if err := h.incidentService.DeleteIncident(c.Request.Context(), id, currentUserID(c)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		log.WithError(err).Error("Failed to delete incident in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete incident"})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List all incidents
// @Description Get a paginated list of all incidents. Requires API key.
// @Tags Station
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /station/incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")
	page, pageSize := pagination(c)

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Find incidents near a point
// @Description Incidents reported within radius meters of (lat, lon). Requires API key.
// @Tags Station
// @Produce json
// @Security ApiKeyAuth
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Param radius query int true "Radius in meters"
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /station/incidents/nearby [get]
func (h *Handler) findNearby(c *gin.Context) {
	log := h.logger.WithField("method", "findNearby")

	var query NearbyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		log.WithError(err).Warn("Failed to bind query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	if err := h.validate.Struct(query); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incidents, err := h.incidentService.FindNearby(c.Request.Context(), *query.Latitude, *query.Longitude, query.RadiusMeters)
	if err != nil {
		log.WithError(err).Error("Failed to find nearby incidents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident statistics
// @Description Incidents and reporting devices in the configured time window. Requires API key.
// @Tags Station
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /station/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	stats, err := h.incidentService.GetStats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get stats from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelToStatsResponse(stats))
}
