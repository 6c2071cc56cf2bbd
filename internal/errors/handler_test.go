package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msaloans/internal/shared/testutil"
)

func TestNewErrorHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	for _, includeStack := range []bool{true, false} {
		handler := NewErrorHandler(logger, includeStack)
		assert.NotNil(t, handler)
		assert.Equal(t, includeStack, handler.includeStack)
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		checkStack bool
	}{
		{
			name:       "nil error writes nothing",
			err:        nil,
			wantStatus: 0,
		},
		{
			name:       "context deadline",
			err:        fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error not ready",
			err:        ErrPipelineNotReady,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypePipelineNotReady,
		},
		{
			name:       "api error pipeline failed",
			err:        PipelineFailed(fmt.Errorf("census unreachable")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypePipelineFailed,
		},
		{
			name:       "wrapped network app error",
			err:        fmt.Errorf("stage fetch_regions: %w", NewNetworkError("census request failed", fmt.Errorf("dial tcp"))),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
		},
		{
			name:       "not found api error",
			err:        NotFoundError("artifact aggregateOutput.xlsx"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "rate limit api error",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
		},
		{
			name:       "plain error maps to internal",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			checkStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, tt.checkStack)

			req := httptest.NewRequest(http.MethodGet, "/aggregateData", nil)
			rec := httptest.NewRecorder()

			handler.HandleError(rec, req, tt.err)

			if tt.wantStatus == 0 {
				assert.Equal(t, 0, rec.Body.Len())
				assert.Equal(t, 0, logs.Count())
				return
			}

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/aggregateData", body["instance"])
			assert.Contains(t, body, "trace_id")
			if tt.checkStack {
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "stack")
			}
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_AppErrorContext(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	err := NewStorageError("cache write failed", nil).WithContext("dataset", "msa.json")
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	problem := handler.ErrorToProblem(err, req)
	assert.Equal(t, http.StatusInternalServerError, problem.Status)
	assert.Equal(t, TypeStorage, problem.Type)
	assert.Equal(t, "STORAGE", problem.Extensions["error_type"])
	assert.Equal(t, map[string]interface{}{"dataset": "msa.json"}, problem.Extensions["context"])
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	req := httptest.NewRequest(http.MethodGet, "/aggregateCsvData", nil)
	rec := httptest.NewRecorder()
	handler.HandlePanic(rec, req, "nil map write")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "nil map write", body["panic"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	handler.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), TypeNotFound)

	rec = httptest.NewRecorder()
	handler.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/aggregateData", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Method DELETE is not allowed")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", "", "/x").
		WithExtension("field", "year").
		WithExtension("status", 999)

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "year", body["field"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"], "standard members win over extensions")
	assert.NotContains(t, body, "detail")
}
