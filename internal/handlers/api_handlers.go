package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/airelay/qwen-bridge/internal/account"
	"github.com/airelay/qwen-bridge/internal/database"
	apierrors "github.com/airelay/qwen-bridge/internal/errors"
	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/monitoring"
	"github.com/airelay/qwen-bridge/internal/qwen"
	"github.com/airelay/qwen-bridge/internal/translator"
	"github.com/airelay/qwen-bridge/internal/types"
	"github.com/airelay/qwen-bridge/internal/utils"
)

// startTime tracks when the application started
var startTime = time.Now()

var validate = validator.New()

// requestValidationMessage turns the first validation failure into a
// client-facing message.
func requestValidationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}
	switch verrs[0].Field() {
	case "Model":
		return "model is required"
	case "Messages":
		return "messages must not be empty"
	default:
		return fmt.Sprintf("field %s failed %q constraint", verrs[0].Field(), verrs[0].Tag())
	}
}

// baseModels are the upstream model families the bridge advertises.
var baseModels = []string{"qwen-max", "qwen-plus", "qwen-turbo"}

// modelSuffixes are the capability variants appended to each base model
// in the /v1/models listing.
var modelSuffixes = []string{"", "-thinking", "-search", "-image", "-image-edit", "-video", "-deep-research"}

// HealthResponse represents the structured health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Details   map[string]any    `json:"details"`
}

// APIHandlers contains the dependencies needed for API handlers
type APIHandlers struct {
	Translator    *translator.RequestTranslator
	Client        *qwen.Client
	Tokens        account.TokenProvider
	Recorder      *database.Recorder
	BufferCeiling int
}

// NewAPIHandlers creates a new APIHandlers instance
func NewAPIHandlers(rt *translator.RequestTranslator, client *qwen.Client, tokens account.TokenProvider, recorder *database.Recorder, bufferCeiling int) *APIHandlers {
	return &APIHandlers{
		Translator:    rt,
		Client:        client,
		Tokens:        tokens,
		Recorder:      recorder,
		BufferCeiling: bufferCeiling,
	}
}

// HealthHandler handles the health check endpoint
// @Summary      Health check endpoint
// @Description  Returns structured health information including status, services, and version details
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.HealthResponse  "Structured health response"
// @Router       /health [get]
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(startTime).Seconds())

	version := os.Getenv("VERSION")
	if version == "" {
		version = "unknown"
	}

	services := make(map[string]string)
	overallStatus := "healthy"

	if h.Client != nil {
		services["upstream"] = "up"
	} else {
		services["upstream"] = "down"
		overallStatus = "unhealthy"
	}

	if h.Tokens != nil {
		services["accounts"] = "up"
	} else {
		services["accounts"] = "down"
		overallStatus = "unhealthy"
	}

	if h.Recorder != nil {
		if err := h.Recorder.HealthCheck(r.Context()); err != nil {
			services["database"] = "down"
			logger.Warn(r.Context(), "Database health check failed", "error", err.Error())
		} else {
			services["database"] = "up"
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Details: map[string]any{
			"uptime":  uptime,
			"version": version,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error(r.Context(), "Failed to encode health response", err)
	}
}

// ModelsHandler returns the list of model identifiers the bridge accepts
// @Summary      List available models
// @Description  Returns the advertised model identifiers, one per base model and capability suffix
// @Tags         models
// @Accept       json
// @Produce      json
// @Success      200  {object}  types.ModelsResponse  "List of available models"
// @Router       /v1/models [get]
func (h *APIHandlers) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	models := make([]types.Model, 0, len(baseModels)*len(modelSuffixes))
	for _, base := range baseModels {
		for _, suffix := range modelSuffixes {
			models = append(models, types.Model{
				ID:      base + suffix,
				Object:  "model",
				Created: startTime.Unix(),
				OwnedBy: "qwen",
			})
		}
	}

	response := types.ModelsResponse{
		Object: "list",
		Data:   models,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error(r.Context(), "Failed to encode models response", err)
	}
}

// ChatCompletionsHandler handles chat completion requests
// @Summary      Create a chat completion
// @Description  Translates the request to the upstream protocol, forwards it, and streams or aggregates the translated response
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request  body      types.ChatCompletionRequest  true  "Chat completion request"
// @Success      200      {object}  types.ChatCompletionResponse "Chat completion response"
// @Failure      400      {object}  errors.ErrorResponse         "Invalid request"
// @Failure      502      {object}  errors.ErrorResponse         "Upstream failure"
// @Security     BearerAuth
// @Router       /v1/chat/completions [post]
func (h *APIHandlers) ChatCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithComponent(r.Context(), "chat_handler")
	start := time.Now()

	if r.Method != http.MethodPost {
		apierrors.HandleError(w, apierrors.NewValidationError("method not allowed"), http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierrors.HandleError(w, apierrors.NewValidationError("failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apierrors.HandleError(w, apierrors.NewValidationError("invalid JSON in request body"), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		apierrors.HandleError(w, apierrors.NewValidationError(requestValidationMessage(err)), http.StatusBadRequest)
		return
	}

	token := h.Tokens.GetToken()

	result, err := h.Translator.Translate(ctx, &req, token)
	if err != nil {
		logger.Error(ctx, "Request translation failed", err, "model", req.Model)
		apierrors.HandleError(w, err, apierrors.StatusCode(err))
		return
	}

	ctx = logger.WithMode(ctx, result.Mode.String())
	monitoring.Get().RecordChatRequest(result.Mode.String())

	logger.Info(ctx, "Chat request translated",
		"model", req.Model,
		"base_model", result.BaseModel,
		"mode", result.Mode.String(),
		"stream", req.Stream,
	)

	resp, err := h.Client.Completions(ctx, result.Body, result.SessionID, token)
	if err != nil {
		logger.Error(ctx, "Upstream completion call failed", err, "model", req.Model)
		h.record(ctx, &req, result, 0, start, true)
		apierrors.HandleError(w, err, apierrors.StatusCode(err))
		return
	}
	defer resp.Body.Close()

	st := translator.NewStreamTranslator(req.Model, result.Mode, translator.WithBufferCeiling(h.BufferCeiling))

	if req.Stream {
		h.streamResponse(ctx, w, resp, st)
	} else {
		h.aggregateResponse(ctx, w, resp, st, req.Model)
	}

	h.record(ctx, &req, result, resp.StatusCode, start, false)
}

// streamResponse pipes the upstream body through the stream translator,
// flushing each translated chunk to the client as it arrives.
func (h *APIHandlers) streamResponse(ctx context.Context, w http.ResponseWriter, resp *http.Response, st *translator.StreamTranslator) {
	ctx = logger.WithStage(ctx, "stream")

	w.Header().Set(utils.HeaderContentType, utils.ContentTypeEventStream)
	w.Header().Set(utils.HeaderCacheControl, utils.CacheControlNoCache)
	w.Header().Set(utils.HeaderConnection, utils.ConnectionKeepAlive)

	flusher, canFlush := w.(http.Flusher)

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			out := st.Push(ctx, buf[:n])
			if len(out) > 0 {
				if _, writeErr := w.Write(out); writeErr != nil {
					logger.Warn(ctx, "Client disconnected during stream", "error", writeErr.Error())
					return
				}
				if canFlush {
					flusher.Flush()
				}
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				logger.Warn(ctx, "Upstream stream ended abnormally", "error", readErr.Error())
			}
			break
		}
	}

	if out := st.Finish(ctx); len(out) > 0 {
		if _, err := w.Write(out); err != nil {
			logger.Warn(ctx, "Failed to write stream tail", "error", err.Error())
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// aggregateResponse drains the translated stream and folds it into a
// single non-streaming completion response.
func (h *APIHandlers) aggregateResponse(ctx context.Context, w http.ResponseWriter, resp *http.Response, st *translator.StreamTranslator, model string) {
	ctx = logger.WithStage(ctx, "aggregate")

	var translated bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			translated.Write(st.Push(ctx, buf[:n]))
		}
		if readErr != nil {
			if readErr != io.EOF {
				logger.Warn(ctx, "Upstream stream ended abnormally", "error", readErr.Error())
			}
			break
		}
	}
	translated.Write(st.Finish(ctx))

	response := foldChunks(translated.String(), model)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error(ctx, "Failed to encode completion response", err)
	}
}

// foldChunks reassembles a translated event stream into one completion
// response by concatenating the delta contents in order.
func foldChunks(stream, model string) *types.ChatCompletionResponse {
	var content strings.Builder
	var id string
	created := time.Now().Unix()
	finishReason := "stop"

	for _, line := range strings.Split(stream, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			continue
		}
		var chunk types.ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if id == "" {
			id = chunk.ID
			created = chunk.Created
		}
		for _, choice := range chunk.Choices {
			content.WriteString(choice.Delta.Content)
			if choice.FinishReason != nil {
				finishReason = *choice.FinishReason
			}
		}
	}

	return &types.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []types.Choice{
			{
				Index:        0,
				Message:      types.Message{Role: types.RoleAssistant, Content: types.PlainContent(content.String())},
				FinishReason: finishReason,
			},
		},
		Usage: types.Usage{},
	}
}

// record writes a best-effort exchange record when a recorder is configured.
func (h *APIHandlers) record(ctx context.Context, req *types.ChatCompletionRequest, result *translator.Result, upstreamStatus int, start time.Time, errored bool) {
	if h.Recorder == nil {
		return
	}
	h.Recorder.Record(ctx, &database.ExchangeRecord{
		RequestID:      logger.RequestIDFromContext(ctx),
		Model:          req.Model,
		BaseModel:      result.BaseModel,
		ChatMode:       result.Mode.String(),
		Stream:         req.Stream,
		UpstreamStatus: upstreamStatus,
		DurationMillis: time.Since(start).Milliseconds(),
		Errored:        errored,
		RequestedAt:    start.UTC(),
	})
}
