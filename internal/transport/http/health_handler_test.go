package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"msaloans/internal/services"
)

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthChecker) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthChecker) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthChecker) Version() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}

func TestHealthHandler(t *testing.T) {
	now := time.Now()
	svc := &MockHealthChecker{}
	svc.On("HealthCheck", mock.Anything).Return(services.HealthStatus{Status: services.StatusOK, Timestamp: now})
	svc.On("LivenessCheck", mock.Anything).Return(services.HealthStatus{Status: services.StatusAlive, Timestamp: now})
	svc.On("Version").Return(map[string]interface{}{"version": "1.0.0"})

	h := NewHealthHandler(svc, nil)

	tests := []struct {
		name        string
		handlerFunc http.HandlerFunc
		wantField   string
		wantValue   string
	}{
		{"health", h.HealthCheck, "status", services.StatusOK},
		{"liveness", h.LivenessCheck, "status", services.StatusAlive},
		{"version", h.Version, "version", "1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handlerFunc(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantValue, body[tt.wantField])
		})
	}
}

func TestHealthHandlerReadiness(t *testing.T) {
	tests := []struct {
		name       string
		status     services.HealthStatus
		wantStatus int
	}{
		{
			name:       "ready",
			status:     services.HealthStatus{Status: services.StatusReady},
			wantStatus: http.StatusOK,
		},
		{
			name: "pipeline still running",
			status: services.HealthStatus{
				Status: services.StatusNotReady,
				Services: map[string]services.ServiceHealth{
					"pipeline": {Status: services.StatusNotReady, Message: "pipeline running"},
				},
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockHealthChecker{}
			svc.On("ReadinessCheck", mock.Anything).Return(tt.status)

			rec := httptest.NewRecorder()
			NewHealthHandler(svc, nil).ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status.Status, body["status"])
		})
	}
}
