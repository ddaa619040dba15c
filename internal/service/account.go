package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/care_reporting_system/internal/models"
	"github.com/shenikar/care_reporting_system/internal/webhook"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository определяет контракт для работы с учетными записями
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// SessionStore выдает и проверяет токены сессий и сброса пароля
type SessionStore interface {
	CreateSession(ctx context.Context, userID uuid.UUID) (string, error)
	ResolveSession(ctx context.Context, token string) (uuid.UUID, error)
	RevokeSession(ctx context.Context, token string) error
	CreateResetToken(ctx context.Context, userID uuid.UUID) (string, error)
	ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error)
}

// AccountService определяет контракт регистрации, входа и профиля
type AccountService interface {
	Register(ctx context.Context, user *models.User, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
}

type accountService struct {
	users      UserRepository
	sessions   SessionStore
	publisher  webhook.WebhookPublisher
	logger     *logrus.Logger
	bcryptCost int
	now        func() time.Time
}

func NewAccountService(users UserRepository, sessions SessionStore, publisher webhook.WebhookPublisher, logger *logrus.Logger) AccountService {
	return &accountService{
		users:      users,
		sessions:   sessions,
		publisher:  publisher,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// HashPassword хэширует пароль
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash проверяет пароль по хэшу
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создает учетную запись и открывает сессию
func (s *accountService) Register(ctx context.Context, user *models.User, password string) (string, error) {
	user.Email = normalizeEmail(user.Email)
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "Register",
		"email":   user.Email,
	})
	log.Info("Attempting to register a new account")

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		return "", fmt.Errorf("service: could not hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			log.Warn("Email already registered")
		} else {
			log.WithError(err).Error("Failed to save user data")
		}
		return "", fmt.Errorf("service: could not register user: %w", err)
	}

	token, err := s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to open session after registration")
		return "", fmt.Errorf("service: could not create session: %w", err)
	}

	log.WithField("user_id", user.ID).Info("Account registered successfully")
	return token, nil
}

// Login проверяет пароль и открывает сессию
func (s *accountService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = normalizeEmail(email)
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "Login",
		"email":   email,
	})

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("Login attempt for unknown email")
			return "", nil, fmt.Errorf("service: %w", models.ErrInvalidCredentials)
		}
		log.WithError(err).Error("Failed to load user for login")
		return "", nil, fmt.Errorf("service: could not load user: %w", err)
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		log.Warn("Login attempt with wrong password")
		return "", nil, fmt.Errorf("service: %w", models.ErrInvalidCredentials)
	}

	token, err := s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to open session")
		return "", nil, fmt.Errorf("service: could not create session: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User logged in")
	return token, user, nil
}

// Logout закрывает сессию
func (s *accountService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.RevokeSession(ctx, token); err != nil {
		s.logger.WithError(err).WithField("method", "Logout").Error("Failed to revoke session")
		return fmt.Errorf("service: could not revoke session: %w", err)
	}
	return nil
}

// Authenticate возвращает пользователя, которому принадлежит токен
func (s *accountService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("service: %w", models.ErrNotAuthenticated)
	}
	userID, err := s.sessions.ResolveSession(ctx, token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("service: could not resolve session: %w", err)
	}
	return userID, nil
}

// RequestPasswordReset ставит в очередь письмо со ссылкой сброса.
// Для неизвестного адреса ответ такой же, как для известного.
func (s *accountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "RequestPasswordReset",
		"email":   email,
	})

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Info("Password reset requested for unknown email")
			return nil
		}
		log.WithError(err).Error("Failed to load user for password reset")
		return fmt.Errorf("service: could not load user: %w", err)
	}

	token, err := s.sessions.CreateResetToken(ctx, user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to create reset token")
		return fmt.Errorf("service: could not create reset token: %w", err)
	}

	event := webhook.WebhookEvent{
		Type:       webhook.EventPasswordReset,
		UserID:     user.ID.String(),
		Timestamp:  s.now().UTC(),
		Email:      user.Email,
		ResetToken: token,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Error("Error sending password reset email")
		return fmt.Errorf("service: could not queue password reset email: %w", err)
	}

	log.Info("Password reset email queued")
	return nil
}

// ResetPassword меняет пароль по одноразовому токену
func (s *accountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "ResetPassword",
	})

	userID, err := s.sessions.ConsumeResetToken(ctx, token)
	if err != nil {
		log.WithError(err).Warn("Invalid password reset token")
		return fmt.Errorf("service: %w", err)
	}

	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("service: could not hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		log.WithError(err).Error("Failed to update password")
		return fmt.Errorf("service: could not update password: %w", err)
	}

	log.WithField("user_id", userID).Info("Password reset successfully")
	return nil
}

// GetProfile возвращает профиль пользователя
func (s *accountService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to get profile")
		return nil, fmt.Errorf("service: could not get profile: %w", err)
	}
	return user, nil
}

// UpdateProfile обновляет имя, телефон и контакты родственников
func (s *accountService) UpdateProfile(ctx context.Context, user *models.User) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "UpdateProfile",
		"user_id": user.ID,
	})

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		log.WithError(err).Error("Failed to update account")
		return fmt.Errorf("service: could not update profile: %w", err)
	}

	log.Info("Account updated successfully")
	return nil
}
