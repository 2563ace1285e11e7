package translator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airelay/qwen-bridge/internal/types"
)

// decodeFrames splits translated output into chunks and counts
// terminal markers.
func decodeFrames(t *testing.T, raw []byte) ([]types.ChatCompletionChunk, int) {
	t.Helper()
	var chunks []types.ChatCompletionChunk
	doneCount := 0
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected line: %q", line)
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			doneCount++
			continue
		}
		var chunk types.ChatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk), "bad chunk: %q", payload)
		chunks = append(chunks, chunk)
	}
	return chunks, doneCount
}

func backendFrame(content, phase string) string {
	frame := map[string]any{
		"choices": []any{
			map[string]any{
				"delta": map[string]any{"content": content, "phase": phase},
			},
		},
	}
	encoded, _ := json.Marshal(frame)
	return "data: " + string(encoded) + "\n"
}

func finishedFrame() string {
	return `data: {"choices":[{"delta":{"content":"","status":"finished"},"finish_reason":"stop"}]}` + "\n"
}

func TestStreamBasicTranslation(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	out := st.Push(ctx, []byte(backendFrame("Hello", "answer")))
	chunks, done := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, done)
	assert.Equal(t, "Hello", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, types.RoleAssistant, chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "chat.completion.chunk", chunks[0].Object)
	assert.Equal(t, "qwen-max", chunks[0].Model)

	// Role rides only on the first chunk.
	out = st.Push(ctx, []byte(backendFrame(" world", "answer")))
	chunks, _ = decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Choices[0].Delta.Role)

	out = st.Finish(ctx)
	_, done = decodeFrames(t, out)
	assert.Equal(t, 1, done)
}

func TestStreamFrameSplitAcrossPushes(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	frame := backendFrame("split frame", "answer")
	half := len(frame) / 2

	out := st.Push(ctx, []byte(frame[:half]))
	assert.Empty(t, out)

	out = st.Push(ctx, []byte(frame[half:]))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "split frame", chunks[0].Choices[0].Delta.Content)
}

func TestStreamThinkWrapper(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max-thinking", ModeText)

	out := st.Push(ctx, []byte(backendFrame("step one", "think")))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "<think>\nstep one", chunks[0].Choices[0].Delta.Content)

	// More thinking keeps the tag open.
	out = st.Push(ctx, []byte(backendFrame(" step two", "think")))
	chunks, _ = decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, " step two", chunks[0].Choices[0].Delta.Content)

	// Phase change closes the tag before the answer content.
	out = st.Push(ctx, []byte(backendFrame("the answer", "answer")))
	chunks, _ = decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "\n</think>\n\nthe answer", chunks[0].Choices[0].Delta.Content)
}

func TestStreamFinishClosesOpenThink(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max-thinking", ModeText)

	st.Push(ctx, []byte(backendFrame("thinking hard", "think")))

	out := st.Finish(ctx)
	chunks, done := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "\n</think>\n", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, 1, done)
}

func TestStreamAssetURLDedup(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max-image", ModeImageGenerate)

	url := "https://cdn.example.com/assets/generated-1.png"

	out := st.Push(ctx, []byte(backendFrame(url, "image_gen")))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "![image]("+url+")", chunks[0].Choices[0].Delta.Content)

	// Repeats of the same URL are dropped entirely.
	out = st.Push(ctx, []byte(backendFrame(url, "image_gen")))
	chunks, _ = decodeFrames(t, out)
	assert.Empty(t, chunks)

	out = st.Push(ctx, []byte(backendFrame(url, "image_gen")))
	chunks, _ = decodeFrames(t, out)
	assert.Empty(t, chunks)

	// A different URL still comes through.
	other := "https://cdn.example.com/assets/generated-2.png"
	out = st.Push(ctx, []byte(backendFrame(other, "image_gen")))
	chunks, _ = decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "![image]("+other+")", chunks[0].Choices[0].Delta.Content)
}

func TestStreamFinishedStatus(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	out := st.Push(ctx, []byte(finishedFrame()))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[0].Choices[0].FinishReason)
}

func TestStreamBackendErrorShortCircuits(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	errorPayload := `{"success":false,"request_id":"req-42","data":{"code":"RateLimited","details":"too many requests"}}` + "\n"

	out := st.Push(ctx, []byte(errorPayload))
	chunks, done := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, done)
	content := chunks[0].Choices[0].Delta.Content
	assert.Contains(t, content, "RateLimited")
	assert.Contains(t, content, "too many requests")
	assert.Contains(t, content, "req-42")
	require.NotNil(t, chunks[0].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[0].Choices[0].FinishReason)

	// Everything after the error is swallowed, including Finish.
	out = st.Push(ctx, []byte(backendFrame("late content", "answer")))
	assert.Empty(t, out)
	out = st.Finish(ctx)
	assert.Empty(t, out)
}

func TestStreamTrailingErrorParsedAtFinish(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	// Error object arrives without a trailing newline.
	out := st.Push(ctx, []byte(`{"success":false,"data":{"code":"InternalError","details":"boom"}}`))
	assert.Empty(t, out)

	out = st.Finish(ctx)
	chunks, done := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, done)
	assert.Contains(t, chunks[0].Choices[0].Delta.Content, "InternalError")
}

func TestStreamBufferCeilingDiscard(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText, WithBufferCeiling(64))

	// Oversized garbage with no frame boundary is discarded.
	garbage := strings.Repeat("x", 128)
	out := st.Push(ctx, []byte(garbage))
	assert.Empty(t, out)

	// Translation resumes cleanly afterwards.
	out = st.Push(ctx, []byte(backendFrame("recovered", "answer")))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "recovered", chunks[0].Choices[0].Delta.Content)
}

func TestStreamOversizedErrorPayloadStillDetected(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText, WithBufferCeiling(32))

	payload := `{"success":false,"request_id":"big","data":{"code":"Overloaded","details":"` +
		strings.Repeat("a", 64) + `"}}`
	out := st.Push(ctx, []byte(payload))
	chunks, done := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, done)
	assert.Contains(t, chunks[0].Choices[0].Delta.Content, "Overloaded")
}

func TestStreamPlainFragmentPassthrough(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	out := st.Push(ctx, []byte("plain text fragment\n"))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "plain text fragment", chunks[0].Choices[0].Delta.Content)
}

func TestStreamMalformedFramedSkipped(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	out := st.Push(ctx, []byte("data: {not json at all\n"))
	assert.Empty(t, out)

	out = st.Push(ctx, []byte(backendFrame("after skip", "answer")))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "after skip", chunks[0].Choices[0].Delta.Content)
}

func TestStreamUpstreamDoneMarkerAbsorbed(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	out := st.Push(ctx, []byte("data: [DONE]\n"))
	assert.Empty(t, out)

	out = st.Finish(ctx)
	chunks, done := decodeFrames(t, out)
	assert.Empty(t, chunks)
	assert.Equal(t, 1, done)
}

func TestStreamCRLFFrames(t *testing.T) {
	ctx := context.Background()
	st := NewStreamTranslator("qwen-max", ModeText)

	frame := strings.TrimSuffix(backendFrame("crlf content", "answer"), "\n") + "\r\n"
	out := st.Push(ctx, []byte(frame))
	chunks, _ := decodeFrames(t, out)
	require.Len(t, chunks, 1)
	assert.Equal(t, "crlf content", chunks[0].Choices[0].Delta.Content)
}

func TestStreamAlternatePayloadShapes(t *testing.T) {
	ctx := context.Background()

	t.Run("bare content field", func(t *testing.T) {
		st := NewStreamTranslator("qwen-max", ModeText)
		out := st.Push(ctx, []byte(`data: {"content":"bare","phase":"answer"}`+"\n"))
		chunks, _ := decodeFrames(t, out)
		require.Len(t, chunks, 1)
		assert.Equal(t, "bare", chunks[0].Choices[0].Delta.Content)
	})

	t.Run("result field", func(t *testing.T) {
		st := NewStreamTranslator("qwen-max", ModeText)
		out := st.Push(ctx, []byte(`data: {"result":"from result"}`+"\n"))
		chunks, _ := decodeFrames(t, out)
		require.Len(t, chunks, 1)
		assert.Equal(t, "from result", chunks[0].Choices[0].Delta.Content)
	})

	t.Run("unrecognized shape skipped", func(t *testing.T) {
		st := NewStreamTranslator("qwen-max", ModeText)
		out := st.Push(ctx, []byte(`data: {"unrelated":true}`+"\n"))
		assert.Empty(t, out)
	})
}
