package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/care_reporting_system/internal/models"
)

// @Summary Register a reporter account
// @Tags Auth
// @Accept json
// @Produce json
// @Param account body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 409 {object} map[string]string "Email already registered"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input RegisterRequest
	log := h.logger.WithField("method", "register")
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	user := RegisterRequestToUser(input)
	token, err := h.accountService.Register(c.Request.Context(), user, input.Password)
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
			return
		}
		log.WithError(err).Error("Failed to register account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save user data"})
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: ModelToUserResponse(user)})
}

// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Login failed"
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input LoginRequest
	log := h.logger.WithField("method", "login")
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	token, user, err := h.accountService.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed. Please try again."})
			return
		}
		log.WithError(err).Error("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: ModelToUserResponse(user)})
}

// @Summary Log out
// @Description Revokes the session token and forgets the session's activation state.
// @Tags Auth
// @Security BearerAuth
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /auth/logout [post]
func (h *Handler) logout(c *gin.Context) {
	token := currentSessionToken(c)
	h.triggers.Discard(token)

	if err := h.accountService.Logout(c.Request.Context(), token); err != nil {
		h.logger.WithError(err).WithField("method", "logout").Error("Failed to log out")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Request a password reset
// @Description Queues a reset email. The answer is the same whether or not the account exists.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Password reset request"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /auth/password-reset [post]
func (h *Handler) requestPasswordReset(c *gin.Context) {
	var input PasswordResetRequest
	log := h.logger.WithField("method", "requestPasswordReset")
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.accountService.RequestPasswordReset(c.Request.Context(), input.Email); err != nil {
		log.WithError(err).Error("Error sending password reset email")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error sending password reset email"})
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "Password reset email sent"})
}

// @Summary Set a new password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body PasswordResetConfirmRequest true "New password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} map[string]string "Invalid or expired token"
// @Router /auth/password-reset/confirm [post]
func (h *Handler) confirmPasswordReset(c *gin.Context) {
	var input PasswordResetConfirmRequest
	log := h.logger.WithField("method", "confirmPasswordReset")
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.accountService.ResetPassword(c.Request.Context(), input.Token, input.Password); err != nil {
		if errors.Is(err, models.ErrInvalidResetToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reset link is invalid or has expired"})
			return
		}
		log.WithError(err).Error("Failed to reset password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password updated"})
}

// @Summary Get own profile
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Profile not found"
// @Router /me [get]
func (h *Handler) getProfile(c *gin.Context) {
	userID := currentUserID(c)
	log := h.logger.WithField("method", "getProfile").WithField("user_id", userID)

	user, err := h.accountService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		log.WithError(err).Error("Failed to get profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user data"})
		return
	}
	c.JSON(http.StatusOK, ModelToUserResponse(user))
}

// @Summary Update own profile
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to update account"
// @Router /me [put]
func (h *Handler) updateProfile(c *gin.Context) {
	var input UpdateProfileRequest
	userID := currentUserID(c)
	log := h.logger.WithField("method", "updateProfile").WithField("user_id", userID)
	if !h.bindAndValidate(c, log, &input) {
		return
	}

	if err := h.accountService.UpdateProfile(c.Request.Context(), UpdateProfileRequestToUser(userID, input)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		log.WithError(err).Error("Failed to update account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update account"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Account updated successfully"})
}

// @Summary Push device position
// @Description Stores the device's last known position. Without permission the coordinates are omitted.
// @Tags Account
// @Accept json
// @Security BearerAuth
// @Param position body PositionRequest true "Device position"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /location [put]
func (h *Handler) updateLocation(c *gin.Context) {
	var input PositionRequest
	userID := currentUserID(c)
	log := h.logger.WithField("method", "updateLocation").WithField("user_id", userID)
	if !h.bindAndValidate(c, log, &input) {
		return
	}
	if *input.PermissionGranted && (input.Latitude == nil || input.Longitude == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required when permission is granted"})
		return
	}

	if err := h.incidentService.ReportPosition(c.Request.Context(), PositionRequestToFix(userID, input)); err != nil {
		log.WithError(err).Error("Failed to save position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}
