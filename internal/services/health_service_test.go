package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"msaloans/internal/operations"
	"msaloans/internal/shared/testutil"
	"msaloans/pkg/contracts"
)

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealthCheck(t *testing.T) {
	hs := NewHealthService(nil, nil, nil)
	status := hs.HealthCheck(context.Background())
	assert.Equal(t, StatusOK, status.Status)
	assert.Equal(t, contracts.Version, status.Version)
}

func TestReadinessCheck(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		ready        bool
		run          *operations.OperationSnapshot
		wantStatus   string
		wantPipeline string
		wantMessage  string
	}{
		{
			name:         "ready after success",
			ready:        true,
			wantStatus:   StatusReady,
			wantPipeline: StatusReady,
		},
		{
			name:         "not started",
			wantStatus:   StatusNotReady,
			wantPipeline: StatusNotReady,
			wantMessage:  "pipeline has not started",
		},
		{
			name:         "running",
			run:          &operations.OperationSnapshot{Status: operations.OperationStatusRunning},
			wantStatus:   StatusNotReady,
			wantPipeline: StatusNotReady,
			wantMessage:  "pipeline running",
		},
		{
			name:         "failed",
			run:          &operations.OperationSnapshot{Status: operations.OperationStatusFailed, Error: "census unavailable"},
			wantStatus:   StatusNotReady,
			wantPipeline: StatusNotReady,
			wantMessage:  "pipeline failed: census unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &MockResultSource{}
			source.On("IsReady").Return(tt.ready)
			source.On("Status").Return(operations.Status{Ready: tt.ready, Run: tt.run})

			status := NewHealthService(source, nil, nil).ReadinessCheck(ctx)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.ready, status.IsReady())
			assert.Equal(t, tt.wantPipeline, status.Services["pipeline"].Status)
			assert.Equal(t, tt.wantMessage, status.Services["pipeline"].Message)
			assert.Equal(t, StatusDisabled, status.Services["store"].Status)
		})
	}

	t.Run("nil pipeline is not ready", func(t *testing.T) {
		status := NewHealthService(nil, nil, nil).ReadinessCheck(ctx)
		assert.False(t, status.IsReady())
	})
}

func TestReadinessCheckStore(t *testing.T) {
	ctx := context.Background()
	source := &MockResultSource{}
	source.On("IsReady").Return(true)

	t.Run("healthy store", func(t *testing.T) {
		store := &MockPinger{}
		store.On("Ping", mock.Anything).Return(nil).Once()

		status := NewHealthService(source, store, nil).ReadinessCheck(ctx)
		assert.True(t, status.IsReady())
		assert.Equal(t, StatusReady, status.Services["store"].Status)
		store.AssertExpectations(t)
	})

	t.Run("failing store degrades without blocking", func(t *testing.T) {
		logger, logs := testutil.NewTestLogger(t)
		store := &MockPinger{}
		store.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		status := NewHealthService(source, store, logger).ReadinessCheck(ctx)
		assert.True(t, status.IsReady())
		assert.Equal(t, StatusDegraded, status.Services["store"].Status)
		assert.Equal(t, "connection refused", status.Services["store"].Message)
		assert.True(t, logs.ContainsMessage("store ping failed"))
	})
}

func TestLivenessAndVersion(t *testing.T) {
	hs := NewHealthService(nil, nil, nil)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, StatusAlive, live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	v := hs.Version()
	assert.Equal(t, contracts.Version, v["version"])
	assert.Equal(t, contracts.DataFormatVersion, v["data_format"])
}
