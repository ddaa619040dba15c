package models

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied - пользователь не выдал разрешение на геолокацию
	ErrPermissionDenied = errors.New("location permission not granted")
	// ErrResourceUnavailable - нет координат или недоступен внешний ресурс
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrUploadFailed - не удалось загрузить доказательства в хранилище
	ErrUploadFailed = errors.New("upload failed")
	// ErrWriteFailed - не удалось сохранить документ
	ErrWriteFailed = errors.New("write failed")
	// ErrNotAuthenticated - нет аутентифицированного пользователя
	ErrNotAuthenticated = errors.New("not authenticated")

	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrMissingEvidence    = errors.New("evidence is required")
)

// Причины недоступности ресурса при отправке обращения
var (
	ErrLocationNotAvailable = fmt.Errorf("%w: location not available", ErrResourceUnavailable)
	ErrLocationLookupFailed = fmt.Errorf("%w: failed to get location", ErrResourceUnavailable)
	ErrProfileUnavailable   = fmt.Errorf("%w: failed to retrieve user data", ErrResourceUnavailable)
)
