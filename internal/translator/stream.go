package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/monitoring"
	"github.com/airelay/qwen-bridge/internal/types"
	"github.com/airelay/qwen-bridge/internal/utils"
)

// Stream phases reported by the backend
const (
	phaseThink  = "think"
	phaseAnswer = "answer"
	phaseImage  = "image_gen"
	phaseVideo  = "video_gen"
)

const doneMarker = "data: [DONE]\n\n"

// defaultBufferCeiling bounds receive-buffer growth when the backend
// never produces a frame boundary.
const defaultBufferCeiling = 2 * 1024 * 1024

// StreamTranslator is a per-request stateful transform from the
// backend's phase-tagged event stream to standardized chat-completion
// chunks. It is created at stream open, driven by a single consumer,
// and discarded at stream close; it is never shared across requests.
type StreamTranslator struct {
	completionID  string
	model         string
	created       int64
	mode          ChatMode
	bufferCeiling int

	buffer        string
	seenAssetURLs map[string]struct{}
	thinkOpen     bool
	chunkSequence int
	errorRaised   bool
	finished      bool
}

// StreamOption customizes a StreamTranslator
type StreamOption func(*StreamTranslator)

// WithBufferCeiling overrides the receive-buffer size limit
func WithBufferCeiling(limit int) StreamOption {
	return func(t *StreamTranslator) {
		if limit > 0 {
			t.bufferCeiling = limit
		}
	}
}

// NewStreamTranslator creates a translator for one stream. The model
// echoed in outbound chunks is the client's original model name.
func NewStreamTranslator(model string, mode ChatMode, opts ...StreamOption) *StreamTranslator {
	t := &StreamTranslator{
		completionID:  utils.GenerateChatCompletionID(),
		model:         model,
		created:       time.Now().Unix(),
		mode:          mode,
		bufferCeiling: defaultBufferCeiling,
		seenAssetURLs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Push consumes raw backend bytes and returns zero or more translated
// outbound frames.
func (t *StreamTranslator) Push(ctx context.Context, chunk []byte) []byte {
	if t.errorRaised || len(chunk) == 0 {
		return nil
	}
	ctx = logger.WithComponent(ctx, "stream_translator")

	t.buffer += string(chunk)
	var out []byte

	// An oversized buffer with no frame boundary is either an
	// unframed backend error object or garbage to be discarded.
	if len(t.buffer) > t.bufferCeiling && !strings.Contains(t.buffer, "\n") {
		if frame := t.tryErrorPayload(ctx, t.buffer); frame != nil {
			t.buffer = ""
			return frame
		}
		logger.Warn(ctx, "Receive buffer exceeded ceiling, discarding",
			"buffer_size", len(t.buffer),
			"ceiling", t.bufferCeiling)
		monitoring.Get().RecordStreamFrame("discarded")
		t.buffer = ""
		return nil
	}

	for {
		idx := strings.Index(t.buffer, "\n")
		if idx < 0 {
			break
		}
		line := strings.TrimRight(t.buffer[:idx], "\r")
		t.buffer = t.buffer[idx+1:]
		if frame := t.translateLine(ctx, line); frame != nil {
			out = append(out, frame...)
		}
		if t.errorRaised {
			t.buffer = ""
			break
		}
	}
	return out
}

// Finish flushes stream-end state: a last parse attempt over any
// unconsumed buffer, verbatim passthrough of non-JSON fragments, and
// the terminal marker (unless the error path already emitted one).
func (t *StreamTranslator) Finish(ctx context.Context) []byte {
	ctx = logger.WithComponent(ctx, "stream_translator")
	if t.errorRaised {
		return nil
	}

	var out []byte
	trailing := strings.TrimSpace(t.buffer)
	t.buffer = ""
	if trailing != "" {
		if frame := t.tryErrorPayload(ctx, trailing); frame != nil {
			return frame
		}
		if frame := t.translateLine(ctx, trailing); frame != nil {
			out = append(out, frame...)
		}
		if t.errorRaised {
			return out
		}
	}

	if t.thinkOpen {
		t.thinkOpen = false
		if frame := t.contentFrame("\n</think>\n", nil); frame != nil {
			out = append(out, frame...)
		}
	}

	out = append(out, []byte(doneMarker)...)
	return out
}

// translateLine handles one complete frame line
func (t *StreamTranslator) translateLine(ctx context.Context, line string) []byte {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	payload := line
	if strings.HasPrefix(payload, "data:") {
		payload = strings.TrimSpace(strings.TrimPrefix(payload, "data:"))
	}
	if payload == "" || payload == "[DONE]" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		if strings.HasPrefix(line, "data:") {
			// Framed but malformed: skip and keep translating.
			logger.Warn(ctx, "Skipping malformed stream frame",
				"payload_size", len(payload))
			monitoring.Get().RecordStreamFrame("skipped")
			return nil
		}
		// Best-effort passthrough for unframed plain fragments.
		monitoring.Get().RecordStreamFrame("passthrough")
		return t.contentFrame(payload, nil)
	}

	if frame := t.backendError(ctx, parsed); frame != nil {
		return frame
	}

	event, ok := extractEvent(parsed)
	if !ok {
		monitoring.Get().RecordStreamFrame("skipped")
		return nil
	}
	monitoring.Get().RecordStreamFrame("translated")
	return t.renderEvent(event)
}

// renderEvent applies phase semantics and dedup to one decoded event
func (t *StreamTranslator) renderEvent(event backendEvent) []byte {
	content := event.Content
	var prefix string

	switch {
	case event.Phase == phaseThink:
		if !t.thinkOpen {
			prefix = "<think>\n"
			t.thinkOpen = true
		}
	case t.thinkOpen:
		prefix = "\n</think>\n\n"
		t.thinkOpen = false
	}

	assetPhase := event.Phase == phaseImage || event.Phase == phaseVideo || t.mode.IsAssetMode()
	if assetPhase && isAssetURL(content) {
		url := strings.TrimSpace(content)
		if _, seen := t.seenAssetURLs[url]; seen {
			content = ""
		} else {
			t.seenAssetURLs[url] = struct{}{}
			content = fmt.Sprintf("![image](%s)", url)
		}
	}

	done := event.Finished
	content = prefix + content
	if content == "" && !done {
		// A frame carrying only an already-seen URL is dropped.
		return nil
	}

	var finishReason *string
	if done {
		t.finished = true
		reason := event.FinishReason
		if reason == "" {
			reason = "stop"
		}
		finishReason = &reason
	}
	return t.contentFrame(content, finishReason)
}

// backendError checks for an explicit success:false payload and, when
// present, emits exactly one error delta and one terminal marker, then
// marks the stream permanently errored.
func (t *StreamTranslator) backendError(ctx context.Context, parsed map[string]any) []byte {
	success, present := parsed["success"].(bool)
	if !present || success {
		return nil
	}

	code, detail := "", ""
	if data, ok := parsed["data"].(map[string]any); ok {
		code, _ = data["code"].(string)
		detail, _ = data["details"].(string)
	}
	requestID, _ := parsed["request_id"].(string)

	logger.Error(ctx, "Backend reported stream error", nil,
		"backend_code", code,
		"backend_detail", detail,
		"backend_request_id", requestID)
	monitoring.Get().RecordStreamFrame("error")

	message := "[upstream error"
	if code != "" {
		message += " " + code
	}
	if detail != "" {
		message += ": " + detail
	}
	if requestID != "" {
		message += " (request " + requestID + ")"
	}
	message += "]"

	t.errorRaised = true
	frame := t.contentFrame(message, stringPtr("stop"))
	return append(frame, []byte(doneMarker)...)
}

// tryErrorPayload attempts to interpret raw bytes as an unframed
// backend error object.
func (t *StreamTranslator) tryErrorPayload(ctx context.Context, raw string) []byte {
	payload := strings.TrimSpace(raw)
	if strings.HasPrefix(payload, "data:") {
		payload = strings.TrimSpace(strings.TrimPrefix(payload, "data:"))
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil
	}
	return t.backendError(ctx, parsed)
}

// contentFrame renders one outbound SSE frame
func (t *StreamTranslator) contentFrame(content string, finishReason *string) []byte {
	delta := types.ChunkDelta{Content: content}
	if t.chunkSequence == 0 {
		delta.Role = types.RoleAssistant
	}
	t.chunkSequence++

	chunk := types.ChatCompletionChunk{
		ID:      t.completionID,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []types.ChunkChoice{
			{Index: 0, Delta: delta, FinishReason: finishReason},
		},
	}
	encoded, err := json.Marshal(chunk)
	if err != nil {
		return nil
	}
	return []byte("data: " + string(encoded) + "\n\n")
}

// backendEvent is the normalized view of one backend data frame
type backendEvent struct {
	Content      string
	Phase        string
	Finished     bool
	FinishReason string
}

// eventExtractor probes one of the backend's alternate payload shapes,
// returning false when the shape does not match.
type eventExtractor func(map[string]any) (backendEvent, bool)

// extractors are tried in order; the first match wins.
var extractors = []eventExtractor{
	extractChoices,
	extractBareContent,
	extractResultField,
}

func extractEvent(parsed map[string]any) (backendEvent, bool) {
	for _, extract := range extractors {
		if event, ok := extract(parsed); ok {
			return event, true
		}
	}
	return backendEvent{}, false
}

// extractChoices reads choices[0].delta or choices[0].message
func extractChoices(parsed map[string]any) (backendEvent, bool) {
	choices, ok := parsed["choices"].([]any)
	if !ok || len(choices) == 0 {
		return backendEvent{}, false
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return backendEvent{}, false
	}

	body, ok := choice["delta"].(map[string]any)
	if !ok {
		body, ok = choice["message"].(map[string]any)
	}
	if !ok {
		return backendEvent{}, false
	}

	event := backendEvent{}
	event.Content, _ = body["content"].(string)
	event.Phase, _ = body["phase"].(string)
	if status, ok := body["status"].(string); ok && status == "finished" {
		event.Finished = true
	}
	if reason, ok := choice["finish_reason"].(string); ok && reason != "" {
		event.FinishReason = reason
		if reason == "stop" {
			event.Finished = true
		}
	}
	return event, true
}

// extractBareContent reads a top-level content field
func extractBareContent(parsed map[string]any) (backendEvent, bool) {
	content, ok := parsed["content"].(string)
	if !ok {
		return backendEvent{}, false
	}
	event := backendEvent{Content: content}
	event.Phase, _ = parsed["phase"].(string)
	return event, true
}

// extractResultField reads a result or data string field
func extractResultField(parsed map[string]any) (backendEvent, bool) {
	if result, ok := parsed["result"].(string); ok {
		return backendEvent{Content: result}, true
	}
	if data, ok := parsed["data"].(string); ok {
		return backendEvent{Content: data}, true
	}
	return backendEvent{}, false
}

// isAssetURL reports whether content is a bare URL suitable for
// treatment as a generated asset reference.
func isAssetURL(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.ContainsAny(trimmed, " \n\t") {
		return false
	}
	return strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")
}

func stringPtr(s string) *string {
	return &s
}
