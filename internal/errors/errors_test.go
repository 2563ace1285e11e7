package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorMessage(t *testing.T) {
	err := NewValidationError("model is required")
	assert.Equal(t, "model is required", err.Error())
	assert.Equal(t, ErrorTypeValidation, err.Type)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"upstream auth", NewUpstreamAuthError("denied"), http.StatusForbidden},
		{"upstream transient", NewUpstreamTransientError("busy"), http.StatusBadGateway},
		{"session", NewSessionError("no session"), http.StatusBadGateway},
		{"upload", NewUploadError("put failed"), http.StatusBadGateway},
		{"backend", NewBackendError("refused", "SomeCode"), http.StatusBadGateway},
		{"configuration", NewConfigurationError("bad config"), http.StatusInternalServerError},
		{"internal", NewInternalError("oops"), http.StatusInternalServerError},
		{"plain error", errors.New("anything"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusCode(tt.err))
		})
	}
}

func TestHandleErrorWritesTypedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, NewValidationError("messages must not be empty"), http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, ErrorTypeValidation, response.Error.Type)
	assert.Equal(t, "messages must not be empty", response.Error.Message)
}

func TestHandleErrorInfersTypeForPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, errors.New("token expired"), http.StatusForbidden)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, ErrorTypeUpstreamAuth, response.Error.Type)
}

func TestValidateRequired(t *testing.T) {
	assert.Nil(t, ValidateRequired("present", "field"))

	err := ValidateRequired("", "model")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "model")
}
