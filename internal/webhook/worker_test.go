package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shenikar/care_reporting_system/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(cfg *config.Config) *WebhookWorker {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return NewWebhookWorker(nil, logger, cfg)
}

func testPayload(t *testing.T) string {
	payload, err := json.Marshal(WebhookEvent{
		Type:      EventIncidentReported,
		UserID:    "user-123",
		Timestamp: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return string(payload)
}

func TestProcessWebhookEvent_SignsPayload(t *testing.T) {
	payload := testPayload(t)
	var gotSignature, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSignature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookSecret:     "station-secret",
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})

	delivered := worker.processWebhookEvent(context.Background(), WebhookEvent{Type: EventIncidentReported}, payload)

	assert.True(t, delivered)
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, generateHMACSHA256(payload, "station-secret"), gotSignature)
}

func TestProcessWebhookEvent_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})

	delivered := worker.processWebhookEvent(context.Background(), WebhookEvent{Type: EventIncidentReported}, testPayload(t))

	assert.True(t, delivered)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcessWebhookEvent_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 2,
		WebhookBaseDelay:  time.Millisecond,
	})

	delivered := worker.processWebhookEvent(context.Background(), WebhookEvent{Type: EventIncidentReported}, testPayload(t))

	assert.False(t, delivered)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProcessWebhookEvent_NoURLSkipsDelivery(t *testing.T) {
	worker := newTestWorker(&config.Config{WebhookMaxRetries: 3})

	delivered := worker.processWebhookEvent(context.Background(), WebhookEvent{Type: EventIncidentReported}, testPayload(t))

	assert.False(t, delivered)
}

func TestProcessWebhookEvent_PasswordResetNeverReachesStation(t *testing.T) {
	var stationCalls atomic.Int32
	station := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stationCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer station.Close()

	var gotBody, gotSignature string
	mailer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSignature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer mailer.Close()

	event := WebhookEvent{
		Type:       EventPasswordReset,
		UserID:     "user-123",
		Timestamp:  time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		Email:      "reporter@gmail.com",
		ResetToken: "one-time-token",
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	worker := newTestWorker(&config.Config{
		WebhookURL:         station.URL,
		WebhookSecret:      "station-secret",
		ResetWebhookURL:    mailer.URL,
		ResetWebhookSecret: "mailer-secret",
		WebhookTimeout:     time.Second,
		WebhookMaxRetries:  3,
		WebhookBaseDelay:   time.Millisecond,
	})

	delivered := worker.processWebhookEvent(context.Background(), event, string(raw))

	assert.True(t, delivered)
	assert.Equal(t, int32(0), stationCalls.Load())
	assert.Equal(t, string(raw), gotBody)
	assert.Equal(t, generateHMACSHA256(string(raw), "mailer-secret"), gotSignature)
}

func TestProcessWebhookEvent_PasswordResetWithoutMailerIsDropped(t *testing.T) {
	var stationCalls atomic.Int32
	station := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stationCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer station.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        station.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})

	delivered := worker.processWebhookEvent(context.Background(),
		WebhookEvent{Type: EventPasswordReset, ResetToken: "one-time-token"},
		`{"type":"password.reset","reset_token":"one-time-token"}`)

	assert.False(t, delivered)
	assert.Equal(t, int32(0), stationCalls.Load())
}

func TestProcessWebhookEvent_UnknownTypeIsDropped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		ResetWebhookURL:   srv.URL + "/reset",
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 1,
	})

	delivered := worker.processWebhookEvent(context.Background(), WebhookEvent{Type: "user.deleted"}, testPayload(t))

	assert.False(t, delivered)
	assert.Equal(t, int32(0), calls.Load())
}
