package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Значения по умолчанию для участка, которому направляются все обращения
const (
	DefaultStationName    = "Thohoyandou Police Station"
	DefaultStationContact = "thohoyandou.sc@saps.gov.za"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Blob storage (S3)
	BlobBucket        string `env:"BLOB_BUCKET"`
	BlobRegion        string `env:"BLOB_REGION" envDefault:"af-south-1"`
	BlobEndpoint      string `env:"BLOB_ENDPOINT"`
	BlobPublicBaseURL string `env:"BLOB_PUBLIC_BASE_URL"`
	MaxEvidenceBytes  int64  `env:"MAX_EVIDENCE_BYTES" envDefault:"524288000"`

	// Участок, которому адресуется обращение
	StationName    string `env:"STATION_NAME" envDefault:"Thohoyandou Police Station"`
	StationContact string `env:"STATION_CONTACT" envDefault:"thohoyandou.sc@saps.gov.za"`

	// Жест тревоги
	ActivationWindow    time.Duration `env:"ACTIVATION_WINDOW" envDefault:"2s"`
	ActivationThreshold int           `env:"ACTIVATION_THRESHOLD" envDefault:"6"`
	CaptureTTL          time.Duration `env:"CAPTURE_TTL" envDefault:"5m"`

	// Таймауты этапов конвейера отправки
	PipelineStageTimeout time.Duration `env:"PIPELINE_STAGE_TIMEOUT" envDefault:"30s"`
	UploadTimeout        time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"5m"`

	// Сессии
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"30m"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Отдельный получатель писем сброса пароля, участок их не видит
	ResetWebhookURL    string `env:"RESET_WEBHOOK_URL"`
	ResetWebhookSecret string `env:"RESET_WEBHOOK_SECRET"`

	// Stats Config
	StatsTimeWindowMinutes int `env:"STATS_TIME_WINDOW_MINUTES" envDefault:"60"`

	// API Keys for station access
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		MigrationsPath:         getEnv("MIGRATIONS_PATH", "file://migrations"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:              os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getEnvAsInt("REDIS_DB", 0),
		BlobBucket:             os.Getenv("BLOB_BUCKET"),
		BlobRegion:             getEnv("BLOB_REGION", "af-south-1"),
		BlobEndpoint:           os.Getenv("BLOB_ENDPOINT"),
		BlobPublicBaseURL:      strings.TrimSuffix(os.Getenv("BLOB_PUBLIC_BASE_URL"), "/"),
		MaxEvidenceBytes:       getEnvAsInt64("MAX_EVIDENCE_BYTES", 500<<20),
		StationName:            getEnv("STATION_NAME", DefaultStationName),
		StationContact:         getEnv("STATION_CONTACT", DefaultStationContact),
		ActivationWindow:       getEnvAsDuration("ACTIVATION_WINDOW", 2*time.Second),
		ActivationThreshold:    getEnvAsInt("ACTIVATION_THRESHOLD", 6),
		CaptureTTL:             getEnvAsDuration("CAPTURE_TTL", 5*time.Minute),
		PipelineStageTimeout:   getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", 30*time.Second),
		UploadTimeout:          getEnvAsDuration("UPLOAD_TIMEOUT", 5*time.Minute),
		SessionTTL:             getEnvAsDuration("SESSION_TTL", 720*time.Hour),
		PasswordResetTTL:       getEnvAsDuration("PASSWORD_RESET_TTL", 30*time.Minute),
		WebhookURL:             os.Getenv("WEBHOOK_URL"),
		WebhookSecret:          os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:         getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:      getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:       getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		ResetWebhookURL:        os.Getenv("RESET_WEBHOOK_URL"),
		ResetWebhookSecret:     os.Getenv("RESET_WEBHOOK_SECRET"),
		StatsTimeWindowMinutes: getEnvAsInt("STATS_TIME_WINDOW_MINUTES", 60),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.BlobBucket == "" {
		return nil, fmt.Errorf("BLOB_BUCKET environment variable is required")
	}
	if cfg.ActivationThreshold < 1 {
		return nil, fmt.Errorf("ACTIVATION_THRESHOLD must be positive, got %d", cfg.ActivationThreshold)
	}
	// Токены сброса пароля не должны попадать на адрес участка
	if cfg.ResetWebhookURL != "" && cfg.ResetWebhookURL == cfg.WebhookURL {
		return nil, fmt.Errorf("RESET_WEBHOOK_URL must differ from WEBHOOK_URL")
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
