package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airelay/qwen-bridge/internal/account"
	"github.com/airelay/qwen-bridge/internal/qwen"
	"github.com/airelay/qwen-bridge/internal/translator"
	"github.com/airelay/qwen-bridge/internal/types"
)

// newBackendStub serves the given SSE body for every completion call.
func newBackendStub(t *testing.T, sseBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/chats/new":
			io.WriteString(w, `{"success":true,"data":{"id":"chat-1"}}`)
		case "/api/v1/chat/completions":
			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, sseBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestHandlers(backendURL string) *APIHandlers {
	client := qwen.NewClient(backendURL, 5*time.Second, 10*time.Second)
	rt := translator.NewRequestTranslator(client, nil)
	tokens := account.NewStaticProvider("account-token")
	return NewAPIHandlers(rt, client, tokens, nil, 1024*1024)
}

func TestModelsHandler(t *testing.T) {
	h := newTestHandlers("http://unused")

	rec := httptest.NewRecorder()
	h.ModelsHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response types.ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "list", response.Object)
	assert.Len(t, response.Data, len(baseModels)*len(modelSuffixes))

	ids := make(map[string]bool)
	for _, model := range response.Data {
		ids[model.ID] = true
	}
	assert.True(t, ids["qwen-max"])
	assert.True(t, ids["qwen-max-thinking"])
	assert.True(t, ids["qwen-plus-image-edit"])
	assert.True(t, ids["qwen-turbo-deep-research"])
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandlers("http://unused")

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "up", response.Services["upstream"])
	assert.Equal(t, "up", response.Services["accounts"])
	// Exchange logging is optional and not configured here.
	_, hasDatabase := response.Services["database"]
	assert.False(t, hasDatabase)
}

func TestChatCompletionsRejectsBadRequests(t *testing.T) {
	h := newTestHandlers("http://unused")

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{broken"))
		rec := httptest.NewRecorder()
		h.ChatCompletionsHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing model", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
			strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		rec := httptest.NewRecorder()
		h.ChatCompletionsHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty messages", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
			strings.NewReader(`{"model":"qwen-max","messages":[]}`))
		rec := httptest.NewRecorder()
		h.ChatCompletionsHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
		rec := httptest.NewRecorder()
		h.ChatCompletionsHandler(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestChatCompletionsStreaming(t *testing.T) {
	sse := `data: {"choices":[{"delta":{"content":"Hello","phase":"answer"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":" world","phase":"answer"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"","status":"finished"},"finish_reason":"stop"}]}` + "\n"
	backend := newBackendStub(t, sse)
	defer backend.Close()

	h := newTestHandlers(backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"qwen-max","stream":true,"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.ChatCompletionsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `"content":"Hello"`)
	assert.Contains(t, body, `"content":" world"`)
	assert.Contains(t, body, "data: [DONE]")

	// Exactly one terminal marker.
	assert.Equal(t, 1, strings.Count(body, "data: [DONE]"))
}

func TestChatCompletionsAggregates(t *testing.T) {
	sse := `data: {"choices":[{"delta":{"content":"Hello","phase":"answer"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":" world","phase":"answer"}}]}` + "\n"
	backend := newBackendStub(t, sse)
	defer backend.Close()

	h := newTestHandlers(backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"qwen-max","messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.ChatCompletionsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response types.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "chat.completion", response.Object)
	assert.Equal(t, "qwen-max", response.Model)
	require.Len(t, response.Choices, 1)
	assert.Equal(t, types.RoleAssistant, response.Choices[0].Message.Role)
	assert.Equal(t, "Hello world", response.Choices[0].Message.Content.Text)
	assert.Equal(t, "stop", response.Choices[0].FinishReason)
}

func TestChatCompletionsUpstreamErrorStream(t *testing.T) {
	sse := `{"success":false,"request_id":"r1","data":{"code":"RateLimited","details":"slow down"}}` + "\n"
	backend := newBackendStub(t, sse)
	defer backend.Close()

	h := newTestHandlers(backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"qwen-max","stream":true,"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.ChatCompletionsHandler(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "RateLimited")
	assert.Equal(t, 1, strings.Count(body, "data: [DONE]"))
}

func TestFoldChunks(t *testing.T) {
	stream := `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"qwen-max","choices":[{"index":0,"delta":{"role":"assistant","content":"a"},"finish_reason":null}]}` + "\n\n" +
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"qwen-max","choices":[{"index":0,"delta":{"content":"b"},"finish_reason":"stop"}]}` + "\n\n" +
		"data: [DONE]\n\n"

	response := foldChunks(stream, "qwen-max")
	assert.Equal(t, "chatcmpl-1", response.ID)
	assert.Equal(t, int64(1700000000), response.Created)
	assert.Equal(t, "ab", response.Choices[0].Message.Content.Text)
	assert.Equal(t, "stop", response.Choices[0].FinishReason)
}
