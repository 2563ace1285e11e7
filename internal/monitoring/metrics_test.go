package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestMetricsExposition(t *testing.T) {
	metrics := Get()
	metrics.RecordRequest("/v1/chat/completions", 200, 25*time.Millisecond)
	metrics.RecordChatRequest("text")
	metrics.RecordUpstreamCall("completions", 100*time.Millisecond)
	metrics.RecordStreamFrame("translated")
	metrics.RecordCacheLookup(true)
	metrics.RecordCacheLookup(false)
	metrics.RecordUpload(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	exposition := string(body)
	assert.Contains(t, exposition, "qwen_bridge_requests_total")
	assert.Contains(t, exposition, "qwen_bridge_chat_requests_total")
	assert.Contains(t, exposition, "qwen_bridge_stream_frames_total")
	assert.Contains(t, exposition, "qwen_bridge_upload_cache_operations_total")
	assert.Contains(t, exposition, "qwen_bridge_uploads_total")
}

func TestMetricsMiddlewareRecordsStatus(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	metricsRec := httptest.NewRecorder()
	Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), `status="418"`)
}
