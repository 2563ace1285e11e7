package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/airelay/qwen-bridge/internal/logger"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation_error"
	ErrorTypeUpstreamAuth      ErrorType = "upstream_auth_error"
	ErrorTypeUpstreamTransient ErrorType = "upstream_transient_error"
	ErrorTypeUpload            ErrorType = "upload_error"
	ErrorTypeSession           ErrorType = "session_error"
	ErrorTypeStreamDecode      ErrorType = "stream_decode_error"
	ErrorTypeBackend           ErrorType = "backend_error"
	ErrorTypeConfiguration     ErrorType = "configuration_error"
	ErrorTypeInternal          ErrorType = "internal_error"
)

// APIError represents a structured API error
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the JSON error response format
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new APIError
func NewAPIError(errorType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errorType,
		Message: message,
	}
}

// NewAPIErrorWithCode creates a new APIError with a backend code
func NewAPIErrorWithCode(errorType ErrorType, message, code string) *APIError {
	return &APIError{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
}

// NewAPIErrorWithDetails creates a new APIError with details
func NewAPIErrorWithDetails(errorType ErrorType, message, details string) *APIError {
	return &APIError{
		Type:    errorType,
		Message: message,
		Details: details,
	}
}

// HandleError writes a standardized error response to the HTTP response writer
func HandleError(w http.ResponseWriter, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	var apiError *APIError
	if ae, ok := err.(*APIError); ok {
		apiError = ae
	} else {
		apiError = inferErrorType(err, statusCode)
	}

	response := ErrorResponse{Error: *apiError}

	ctx := logger.WithComponent(context.Background(), "errors")
	if jsonBytes, jsonErr := json.Marshal(response); jsonErr == nil {
		if _, writeErr := w.Write(jsonBytes); writeErr != nil {
			logger.Warn(ctx, "Failed to write error response", "error", writeErr)
		}
	} else {
		logger.Error(ctx, "Error marshaling error response", jsonErr)
		_, _ = w.Write([]byte(`{"error":{"type":"internal_error","message":"Internal server error"}}`))
	}

	logger.Error(ctx, "API error",
		err,
		"status_code", statusCode,
		"error_type", string(apiError.Type),
	)
}

// StatusCode maps an error type to the HTTP status it should surface as
func StatusCode(err error) int {
	ae, ok := err.(*APIError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ae.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUpstreamAuth:
		return http.StatusForbidden
	case ErrorTypeUpstreamTransient, ErrorTypeBackend:
		return http.StatusBadGateway
	case ErrorTypeSession, ErrorTypeUpload:
		return http.StatusBadGateway
	case ErrorTypeConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// inferErrorType attempts to infer the error type based on the status code
func inferErrorType(err error, statusCode int) *APIError {
	message := err.Error()

	switch statusCode {
	case http.StatusBadRequest:
		return NewAPIError(ErrorTypeValidation, message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewAPIError(ErrorTypeUpstreamAuth, message)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return NewAPIError(ErrorTypeUpstreamTransient, message)
	default:
		return NewAPIError(ErrorTypeInternal, message)
	}
}

// Common error constructors for convenience

// NewValidationError creates a validation error
func NewValidationError(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message)
}

// NewUpstreamAuthError creates an upstream authorization error
func NewUpstreamAuthError(message string) *APIError {
	return NewAPIError(ErrorTypeUpstreamAuth, message)
}

// NewUpstreamTransientError creates a transient upstream error
func NewUpstreamTransientError(message string) *APIError {
	return NewAPIError(ErrorTypeUpstreamTransient, message)
}

// NewUploadError creates an asset upload error
func NewUploadError(message string) *APIError {
	return NewAPIError(ErrorTypeUpload, message)
}

// NewSessionError creates a session creation error
func NewSessionError(message string) *APIError {
	return NewAPIError(ErrorTypeSession, message)
}

// NewBackendError creates an error for a backend-reported failure
func NewBackendError(message, code string) *APIError {
	return NewAPIErrorWithCode(ErrorTypeBackend, message, code)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *APIError {
	return NewAPIError(ErrorTypeConfiguration, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *APIError {
	return NewAPIError(ErrorTypeInternal, message)
}

// Validation helpers

// ValidateRequired checks if a required string field is present
func ValidateRequired(value, fieldName string) *APIError {
	if value == "" {
		return NewValidationError(fmt.Sprintf("Field '%s' is required", fieldName))
	}
	return nil
}
