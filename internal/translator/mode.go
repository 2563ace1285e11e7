package translator

import (
	"fmt"
	"strconv"
	"strings"
)

// ChatMode is the backend behavior class a request is routed into.
// Exactly one mode applies per request.
type ChatMode int

const (
	ModeText ChatMode = iota
	ModeSearch
	ModeImageGenerate
	ModeImageEdit
	ModeVideo
	ModeDeepResearch
)

// String returns the gateway-facing mode name
func (m ChatMode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeImageGenerate:
		return "image_generate"
	case ModeImageEdit:
		return "image_edit"
	case ModeVideo:
		return "video"
	case ModeDeepResearch:
		return "deep_research"
	default:
		return "text"
	}
}

// BackendValue returns the chat_mode value the backend expects
func (m ChatMode) BackendValue() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeImageGenerate:
		return "t2i"
	case ModeImageEdit:
		return "image_edit"
	case ModeVideo:
		return "t2v"
	case ModeDeepResearch:
		return "deep_research"
	default:
		return "t2t"
	}
}

// RequiresSession reports whether the mode needs a pre-created backend
// session before the stream can begin.
func (m ChatMode) RequiresSession() bool {
	switch m {
	case ModeImageGenerate, ModeImageEdit, ModeVideo:
		return true
	default:
		return false
	}
}

// IsAssetMode reports whether stream content URLs should be treated as
// generated asset references.
func (m ChatMode) IsAssetMode() bool {
	switch m {
	case ModeImageGenerate, ModeImageEdit, ModeVideo:
		return true
	default:
		return false
	}
}

// modeSuffixes lists the model-name suffix tokens in match precedence
// order. image-edit variants must come before the broader -image token.
var modeSuffixes = []struct {
	token string
	mode  ChatMode
}{
	{"-search", ModeSearch},
	{"-image-edit", ModeImageEdit},
	{"-image_edit", ModeImageEdit},
	{"-image", ModeImageGenerate},
	{"-video", ModeVideo},
	{"-deep-research", ModeDeepResearch},
}

const thinkingSuffix = "-thinking"

// ClassifyMode derives the chat mode from the model name suffix,
// returning the first matching token in precedence order.
func ClassifyMode(model string) ChatMode {
	for _, s := range modeSuffixes {
		if strings.Contains(model, s.token) {
			return s.mode
		}
	}
	return ModeText
}

// BaseModel strips mode and thinking suffixes, yielding the model
// identifier sent upstream.
func BaseModel(model string) string {
	base := strings.ReplaceAll(model, thinkingSuffix, "")
	for _, s := range modeSuffixes {
		base = strings.ReplaceAll(base, s.token, "")
	}
	return base
}

// Thinking budget bounds. Overrides outside (0, maxThinkingBudget) are
// ignored and the backend default applies.
const (
	maxThinkingBudget     = 38912
	defaultThinkingBudget = 81920
)

// ThinkingConfig controls the backend's reasoning phase
type ThinkingConfig struct {
	Enabled bool
	Budget  *int
}

// ResolveThinking derives the thinking configuration from the model
// suffix and the explicit request flags.
func ResolveThinking(model string, explicitFlag bool, explicitBudget *int) ThinkingConfig {
	cfg := ThinkingConfig{
		Enabled: strings.Contains(model, thinkingSuffix) || explicitFlag,
	}
	if explicitBudget != nil && *explicitBudget > 0 && *explicitBudget < maxThinkingBudget {
		budget := *explicitBudget
		cfg.Budget = &budget
	}
	return cfg
}

// aspectRatioPresets maps common size strings to their aspect ratio
var aspectRatioPresets = map[string]string{
	"1024x1024": "1:1",
	"512x512":   "1:1",
	"768x768":   "1:1",
	"1792x1024": "16:9",
	"1280x720":  "16:9",
	"1920x1080": "16:9",
	"1024x1792": "9:16",
	"720x1280":  "9:16",
	"1080x1920": "9:16",
	"960x720":   "4:3",
	"1152x864":  "4:3",
	"720x960":   "3:4",
	"864x1152":  "3:4",
}

// AspectRatio maps a free-form "WxH" size string to a normalized
// aspect ratio: lookup for common presets, otherwise width and height
// reduced by their greatest common divisor. Unparseable sizes fall
// back to square.
func AspectRatio(size string) string {
	if size == "" {
		return "1:1"
	}
	if ratio, ok := aspectRatioPresets[size]; ok {
		return ratio
	}

	parts := strings.SplitN(strings.ToLower(size), "x", 2)
	if len(parts) != 2 {
		return "1:1"
	}
	width, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return "1:1"
	}

	divisor := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/divisor, height/divisor)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
