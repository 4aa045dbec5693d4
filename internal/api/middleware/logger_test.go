package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveLogged(t *testing.T, req *http.Request, next http.Handler) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	logBuffer := new(bytes.Buffer)
	logger := slog.New(slog.NewJSONHandler(logBuffer, nil))

	rr := httptest.NewRecorder()
	StructuredLogger(logger)(next).ServeHTTP(rr, req)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(logBuffer.Bytes(), &logEntry), "Failed to unmarshal log output")
	return rr, logEntry
}

func TestStructuredLogger(t *testing.T) {
	body := `{"senderId":1}`
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(body))
	})

	req := httptest.NewRequest(http.MethodPost, "/transfers", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	req.Header.Set("User-Agent", "creditctl/1.0")
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))

	rr, logEntry := serveLogged(t, req, next)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "INFO", logEntry["level"])
	assert.Equal(t, "Served request", logEntry["msg"])
	assert.Equal(t, "/transfers", logEntry["path"])
	assert.Equal(t, "192.0.2.1:12345", logEntry["remote_addr"])
	assert.Equal(t, "creditctl/1.0", logEntry["user_agent"])
	assert.Equal(t, float64(http.StatusAccepted), logEntry["status"])
	assert.Equal(t, float64(len(body)), logEntry["bytes_written"])
	assert.Equal(t, "req-42", logEntry["request_id"])

	latency, ok := logEntry["latency_ms"].(float64)
	assert.True(t, ok)
	assert.Greater(t, latency, 0.0)
}

func TestStructuredLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusConflict, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, logEntry := serveLogged(t, httptest.NewRequest(http.MethodGet, "/accounts/1", nil), next)

			assert.Equal(t, tt.level, logEntry["level"])
			assert.Equal(t, "", logEntry["request_id"])
		})
	}
}

func TestStructuredLogger_ImplicitOK(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	_, logEntry := serveLogged(t, httptest.NewRequest(http.MethodGet, "/health", nil), next)

	assert.Equal(t, float64(http.StatusOK), logEntry["status"])
}
