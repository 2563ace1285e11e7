package translator

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	apierrors "github.com/airelay/qwen-bridge/internal/errors"
	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/types"
	"github.com/airelay/qwen-bridge/internal/utils"
)

// SessionCreator performs the synchronous backend session round trip
type SessionCreator interface {
	CreateSession(ctx context.Context, mode, model, token string) (string, error)
}

// AssetUploader rewrites inline bytes into a public asset reference
type AssetUploader interface {
	UploadAndCache(ctx context.Context, data []byte, filename, mimeType, token string) (string, error)
}

// RequestTranslator converts a standardized chat request into the
// backend's request shape.
type RequestTranslator struct {
	sessions SessionCreator
	uploader AssetUploader
}

// NewRequestTranslator creates a request translator
func NewRequestTranslator(sessions SessionCreator, uploader AssetUploader) *RequestTranslator {
	return &RequestTranslator{
		sessions: sessions,
		uploader: uploader,
	}
}

// Result is the outcome of request translation
type Result struct {
	Body      *types.BackendRequest
	SessionID string
	Mode      ChatMode
	BaseModel string
	Thinking  ThinkingConfig
}

// Translate classifies the request into a chat mode, rewrites its
// multimodal content, and builds the backend request body, creating a
// backend session first for the modes that require one.
func (t *RequestTranslator) Translate(ctx context.Context, req *types.ChatCompletionRequest, token string) (*Result, error) {
	ctx = logger.WithComponent(ctx, "request_translator")

	if len(req.Messages) == 0 {
		return nil, apierrors.NewValidationError("messages must not be empty")
	}

	mode := ClassifyMode(req.Model)
	base := BaseModel(req.Model)
	explicitFlag := req.EnableThinking != nil && *req.EnableThinking
	thinking := ResolveThinking(req.Model, explicitFlag, req.ThinkingBudget)

	logger.Debug(ctx, "Request classified",
		"model", req.Model,
		"base_model", base,
		"chat_mode", mode.String(),
		"thinking_enabled", thinking.Enabled)

	messages := t.rewriteContent(ctx, req.Messages, token)

	return t.buildBackendRequest(ctx, req, mode, base, thinking, messages, token)
}

// rewriteContent walks every message, flattening system content,
// uploading inline images, and splitting surplus text parts out into
// synthetic trailing user messages. It always builds a fresh output
// sequence, never mutating the one being traversed.
func (t *RequestTranslator) rewriteContent(ctx context.Context, messages []types.Message, token string) []types.Message {
	ctx = logger.WithStage(ctx, "content_rewrite")

	output := make([]types.Message, 0, len(messages))
	var followUps []string

	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			output = append(output, types.Message{
				Role:    types.RoleSystem,
				Content: types.PlainContent(flattenContent(msg.Content)),
			})
			continue
		}
		if !msg.Content.IsParts {
			output = append(output, msg)
			continue
		}

		parts := make([]types.ContentPart, 0, len(msg.Content.Parts))
		placed := 0
		for _, part := range msg.Content.Parts {
			switch part.Type {
			case types.PartTypeText:
				// The backend expects single-media-per-turn framing;
				// text arriving after multiple placed items becomes a
				// follow-up user turn instead.
				if placed > 1 {
					followUps = append(followUps, part.Text)
					continue
				}
				parts = append(parts, part)
				placed++
			case types.PartTypeImageURL:
				parts = append(parts, t.rewriteImagePart(ctx, part, token))
				placed++
			case types.PartTypeImage:
				parts = append(parts, part)
				placed++
			default:
				parts = append(parts, part)
				placed++
			}
		}
		output = append(output, types.Message{
			Role:    msg.Role,
			Content: types.PartsContent(parts),
		})
	}

	for _, text := range followUps {
		output = append(output, types.Message{
			Role: types.RoleUser,
			Content: types.PartsContent([]types.ContentPart{
				{Type: types.PartTypeText, Text: text},
			}),
		})
	}
	return output
}

// rewriteImagePart resolves one image_url part: inline data URIs are
// uploaded and become image references; upload failure degrades the
// part to explanatory text rather than failing the request.
func (t *RequestTranslator) rewriteImagePart(ctx context.Context, part types.ContentPart, token string) types.ContentPart {
	if part.ImageURL == nil || part.ImageURL.URL == "" {
		return types.ContentPart{Type: types.PartTypeText, Text: "[image missing url]"}
	}

	url := part.ImageURL.URL
	if !strings.HasPrefix(url, "data:") {
		return types.ContentPart{Type: types.PartTypeImage, Image: url}
	}

	data, mimeType, err := parseDataURI(url)
	if err != nil {
		logger.Warn(ctx, "Inline image could not be decoded", "error", err.Error())
		return types.ContentPart{Type: types.PartTypeText, Text: "[image could not be decoded]"}
	}

	filename := "upload-" + utils.GenerateRequestID()
	publicURL, err := t.uploader.UploadAndCache(ctx, data, filename+extensionForMime(mimeType), mimeType, token)
	if err != nil {
		logger.Warn(ctx, "Inline image upload failed, degrading to text",
			"error", err.Error(),
			"size_bytes", len(data))
		return types.ContentPart{
			Type: types.PartTypeText,
			Text: fmt.Sprintf("[image upload failed: %s]", err.Error()),
		}
	}
	return types.ContentPart{Type: types.PartTypeImage, Image: publicURL}
}

// buildBackendRequest produces the mode-specific backend body and, for
// modes that need one, the pre-created backend session identifier.
func (t *RequestTranslator) buildBackendRequest(ctx context.Context, req *types.ChatCompletionRequest, mode ChatMode, base string, thinking ThinkingConfig, messages []types.Message, token string) (*Result, error) {
	ctx = logger.WithStage(ctx, "backend_request")

	body := &types.BackendRequest{
		Stream:            true,
		IncrementalOutput: true,
		ChatMode:          mode.BackendValue(),
		Model:             base,
		ParentID:          nil,
		Messages:          toBackendMessages(messages, mode, thinking),
	}

	result := &Result{
		Body:      body,
		Mode:      mode,
		BaseModel: base,
		Thinking:  thinking,
	}

	if !mode.RequiresSession() {
		// Single-shot body with a locally generated identifier pair.
		body.SessionID = utils.GenerateSessionID()
		body.ChatID = utils.GenerateConversationID()
		return result, nil
	}

	sessionID, err := t.sessions.CreateSession(ctx, mode.BackendValue(), base, token)
	if err != nil {
		logger.Error(ctx, "Backend session creation failed", err,
			"chat_mode", mode.String(),
			"base_model", base)
		return nil, err
	}
	body.ChatID = sessionID
	result.SessionID = sessionID

	switch mode {
	case ModeImageGenerate:
		body.Size = AspectRatio(req.Size)
	case ModeImageEdit:
		refs := collectImageReferences(messages, 3)
		if len(refs) == 0 {
			return nil, apierrors.NewValidationError("image edit requires at least one source image in the conversation")
		}
		attachImageReferences(body, refs)
	}

	return result, nil
}

// toBackendMessages converts rewritten messages to the backend turn
// shape; the thinking configuration rides on the final user turn.
func toBackendMessages(messages []types.Message, mode ChatMode, thinking ThinkingConfig) []types.BackendMessage {
	backend := make([]types.BackendMessage, 0, len(messages))
	lastUser := -1
	for i, msg := range messages {
		if msg.Role == types.RoleUser {
			lastUser = i
		}
		backend = append(backend, types.BackendMessage{
			Role:     msg.Role,
			Content:  msg.Content,
			ChatType: mode.BackendValue(),
			Extra:    map[string]any{},
		})
	}
	if lastUser >= 0 {
		backend[lastUser].FeatureConfig = &types.BackendFeatureConfig{
			ThinkingEnabled: thinking.Enabled,
			ThinkingBudget:  thinking.Budget,
		}
	}
	return backend
}

// markdownImagePattern matches image references embedded in
// assistant-authored markdown
var markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)

// collectImageReferences gathers up to limit image URLs, most recent
// first, from the current turn backward through prior turns, including
// ones embedded in markdown-image syntax.
func collectImageReferences(messages []types.Message, limit int) []string {
	var refs []string
	seen := make(map[string]struct{})

	add := func(url string) {
		if url == "" {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		seen[url] = struct{}{}
		refs = append(refs, url)
	}

	for i := len(messages) - 1; i >= 0 && len(refs) < limit; i-- {
		msg := messages[i]
		if msg.Content.IsParts {
			for j := len(msg.Content.Parts) - 1; j >= 0 && len(refs) < limit; j-- {
				part := msg.Content.Parts[j]
				switch {
				case part.Type == types.PartTypeImage && part.Image != "":
					add(part.Image)
				case part.Type == types.PartTypeImageURL && part.ImageURL != nil:
					add(part.ImageURL.URL)
				case part.Type == types.PartTypeText:
					for _, m := range markdownImagePattern.FindAllStringSubmatch(part.Text, -1) {
						if len(refs) < limit {
							add(m[1])
						}
					}
				}
			}
			continue
		}
		for _, m := range markdownImagePattern.FindAllStringSubmatch(msg.Content.Text, -1) {
			if len(refs) < limit {
				add(m[1])
			}
		}
	}
	return refs
}

// attachImageReferences places the collected source images on the
// final turn of the backend request.
func attachImageReferences(body *types.BackendRequest, refs []string) {
	if len(body.Messages) == 0 {
		return
	}
	last := &body.Messages[len(body.Messages)-1]
	parts := []types.ContentPart{}
	if last.Content.IsParts {
		for _, part := range last.Content.Parts {
			if part.Type != types.PartTypeImage {
				parts = append(parts, part)
			}
		}
	} else if last.Content.Text != "" {
		parts = append(parts, types.ContentPart{Type: types.PartTypeText, Text: last.Content.Text})
	}
	for _, url := range refs {
		parts = append(parts, types.ContentPart{Type: types.PartTypeImage, Image: url})
	}
	last.Content = types.PartsContent(parts)
}

// flattenContent reduces any message content to a single string
func flattenContent(content types.MessageContent) string {
	if !content.IsParts {
		return content.Text
	}
	var texts []string
	for _, part := range content.Parts {
		if part.Type == types.PartTypeText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// parseDataURI decodes a base64 data URI into raw bytes and mime type
func parseDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	meta := rest[:comma]
	payload := rest[comma+1:]

	mimeType := "application/octet-stream"
	if semi := strings.Index(meta, ";"); semi >= 0 {
		if semi > 0 {
			mimeType = meta[:semi]
		}
	} else if meta != "" {
		mimeType = meta
	}

	if !strings.Contains(meta, "base64") {
		return nil, "", fmt.Errorf("unsupported data URI encoding")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty data URI payload")
	}
	return data, mimeType, nil
}

// extensionForMime maps a mime type to a filename extension
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
