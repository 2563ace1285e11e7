package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMode(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		expected ChatMode
	}{
		{"plain model", "qwen-max", ModeText},
		{"thinking variant stays text", "qwen-max-thinking", ModeText},
		{"search suffix", "qwen-max-search", ModeSearch},
		{"image suffix", "qwen-max-image", ModeImageGenerate},
		{"image edit beats image", "qwen-max-image-edit", ModeImageEdit},
		{"image edit underscore form", "qwen-max-image_edit", ModeImageEdit},
		{"video suffix", "qwen-plus-video", ModeVideo},
		{"deep research suffix", "qwen-max-deep-research", ModeDeepResearch},
		{"thinking with search", "qwen-max-thinking-search", ModeSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyMode(tt.model))
		})
	}
}

func TestBaseModel(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"qwen-max", "qwen-max"},
		{"qwen-max-thinking", "qwen-max"},
		{"qwen-max-search", "qwen-max"},
		{"qwen-max-image-edit", "qwen-max"},
		{"qwen-max-thinking-image", "qwen-max"},
		{"qwen-plus-video", "qwen-plus"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, BaseModel(tt.model))
		})
	}
}

func TestBackendValue(t *testing.T) {
	assert.Equal(t, "t2t", ModeText.BackendValue())
	assert.Equal(t, "search", ModeSearch.BackendValue())
	assert.Equal(t, "t2i", ModeImageGenerate.BackendValue())
	assert.Equal(t, "image_edit", ModeImageEdit.BackendValue())
	assert.Equal(t, "t2v", ModeVideo.BackendValue())
	assert.Equal(t, "deep_research", ModeDeepResearch.BackendValue())
}

func TestRequiresSession(t *testing.T) {
	assert.False(t, ModeText.RequiresSession())
	assert.False(t, ModeSearch.RequiresSession())
	assert.False(t, ModeDeepResearch.RequiresSession())
	assert.True(t, ModeImageGenerate.RequiresSession())
	assert.True(t, ModeImageEdit.RequiresSession())
	assert.True(t, ModeVideo.RequiresSession())
}

func TestResolveThinking(t *testing.T) {
	budget := func(v int) *int { return &v }

	tests := []struct {
		name        string
		model       string
		flag        bool
		budget      *int
		wantEnabled bool
		wantBudget  *int
	}{
		{"plain model disabled", "qwen-max", false, nil, false, nil},
		{"thinking suffix enables", "qwen-max-thinking", false, nil, true, nil},
		{"explicit flag enables", "qwen-max", true, nil, true, nil},
		{"valid budget kept", "qwen-max-thinking", false, budget(1000), true, budget(1000)},
		{"budget above limit ignored", "qwen-max", true, budget(50000), true, nil},
		{"budget at limit ignored", "qwen-max", true, budget(38912), true, nil},
		{"zero budget ignored", "qwen-max", true, budget(0), true, nil},
		{"negative budget ignored", "qwen-max", true, budget(-5), true, nil},
		{"budget without thinking still recorded", "qwen-max", false, budget(200), false, budget(200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ResolveThinking(tt.model, tt.flag, tt.budget)
			assert.Equal(t, tt.wantEnabled, cfg.Enabled)
			if tt.wantBudget == nil {
				assert.Nil(t, cfg.Budget)
			} else {
				if assert.NotNil(t, cfg.Budget) {
					assert.Equal(t, *tt.wantBudget, *cfg.Budget)
				}
			}
		})
	}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		size     string
		expected string
	}{
		{"", "1:1"},
		{"1024x1024", "1:1"},
		{"1792x1024", "16:9"},
		{"1024x1792", "9:16"},
		{"960x720", "4:3"},
		{"333x111", "3:1"},
		{"100x75", "4:3"},
		{"nonsense", "1:1"},
		{"0x100", "1:1"},
		{"-5x100", "1:1"},
		{"100x", "1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			assert.Equal(t, tt.expected, AspectRatio(tt.size))
		})
	}
}
