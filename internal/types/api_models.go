package types

import (
	"encoding/json"
	"fmt"
)

// ChatCompletionRequest represents a request to the chat completions API
type ChatCompletionRequest struct {
	Messages []Message `json:"messages" validate:"required,min=1"`
	Model    string    `json:"model" example:"qwen-max" validate:"required"`
	Stream   bool      `json:"stream,omitempty" example:"false"`
	// Size is only meaningful for image generation ("WxH")
	Size string `json:"size,omitempty" example:"1024x1024"`
	// Explicit thinking controls; the model suffix takes precedence
	EnableThinking *bool `json:"enable_thinking,omitempty"`
	ThinkingBudget *int  `json:"thinking_budget,omitempty"`
}

// Message represents a chat message. Content is either a plain string
// or an ordered array of content parts (vision requests).
type Message struct {
	Role    string         `json:"role" example:"user"`
	Content MessageContent `json:"content"`
}

// MessageContent is the tagged union over string and content-part
// array message bodies.
type MessageContent struct {
	Text  string
	Parts []ContentPart
	// IsParts distinguishes an empty parts array from string content
	IsParts bool
}

// UnmarshalJSON accepts either a JSON string or an array of parts
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.IsParts = false
		c.Parts = nil
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		c.IsParts = true
		c.Text = ""
		return nil
	}
	return fmt.Errorf("content must be a string or an array of content parts")
}

// MarshalJSON emits the original wire shape
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// PlainContent returns string content from a MessageContent
func PlainContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// PartsContent returns multimodal content from parts
func PartsContent(parts []ContentPart) MessageContent {
	return MessageContent{Parts: parts, IsParts: true}
}

// ContentPart represents a part of a multimodal message body
type ContentPart struct {
	Type     string    `json:"type" example:"text"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	Image    string    `json:"image,omitempty"`
}

// ImageURL represents an image URL structure; the URL may be a public
// reference or a data URI carrying inline bytes.
type ImageURL struct {
	URL string `json:"url"`
}

// Content part type tags
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
	PartTypeImage    = "image"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatCompletionChunk represents a streaming response chunk
type ChatCompletionChunk struct {
	ID      string        `json:"id" example:"chatcmpl-abc123"`
	Object  string        `json:"object" example:"chat.completion.chunk"`
	Created int64         `json:"created" example:"1677652288"`
	Model   string        `json:"model" example:"qwen-max"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice represents a choice inside a streaming chunk
type ChunkChoice struct {
	Index        int        `json:"index" example:"0"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta carries the incremental content of a chunk
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChatCompletionResponse represents a non-streaming completion
type ChatCompletionResponse struct {
	ID      string   `json:"id" example:"chatcmpl-abc123"`
	Object  string   `json:"object" example:"chat.completion"`
	Created int64    `json:"created" example:"1677652288"`
	Model   string   `json:"model" example:"qwen-max"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index" example:"0"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason" example:"stop"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" example:"10"`
	CompletionTokens int `json:"completion_tokens" example:"20"`
	TotalTokens      int `json:"total_tokens" example:"30"`
}

// ModelsResponse represents the response from the models endpoint
type ModelsResponse struct {
	Object string  `json:"object" example:"list"`
	Data   []Model `json:"data"`
}

// Model represents an advertised model identifier
type Model struct {
	ID      string `json:"id" example:"qwen-max"`
	Object  string `json:"object" example:"model"`
	Created int64  `json:"created" example:"1677610602"`
	OwnedBy string `json:"owned_by" example:"qwen"`
}
