package types

// Backend wire shapes for the upstream chat service.

// BackendMessage is a single turn in the backend request body
type BackendMessage struct {
	Role          string                `json:"role"`
	Content       MessageContent        `json:"content"`
	ChatType      string                `json:"chat_type,omitempty"`
	Extra         map[string]any        `json:"extra,omitempty"`
	FeatureConfig *BackendFeatureConfig `json:"feature_config,omitempty"`
}

// BackendFeatureConfig carries per-message feature flags
type BackendFeatureConfig struct {
	ThinkingEnabled bool `json:"thinking_enabled"`
	ThinkingBudget  *int `json:"thinking_budget,omitempty"`
}

// BackendRequest is the body of the upstream chat-completion call
type BackendRequest struct {
	Stream            bool             `json:"stream"`
	IncrementalOutput bool             `json:"incremental_output"`
	SessionID         string           `json:"session_id,omitempty"`
	ChatID            string           `json:"chat_id,omitempty"`
	ChatMode          string           `json:"chat_mode"`
	Model             string           `json:"model"`
	ParentID          *string          `json:"parent_id"`
	Messages          []BackendMessage `json:"messages"`
	Size              string           `json:"size,omitempty"`
}

// BackendSessionRequest is the body of the session-creation call
type BackendSessionRequest struct {
	Title     string   `json:"title"`
	Models    []string `json:"models"`
	ChatMode  string   `json:"chat_mode"`
	Timestamp int64    `json:"timestamp"`
}

// BackendSessionResponse is the session-creation response envelope
type BackendSessionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

// BackendCredentialRequest is the body of the upload-credential call
type BackendCredentialRequest struct {
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Filetype string `json:"filetype"`
}

// BackendCredentialResponse carries the short-lived write credential
// and the descriptor of where the asset will live.
type BackendCredentialResponse struct {
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
	SecurityToken   string `json:"security_token"`
	FileURL         string `json:"file_url"`
	FilePath        string `json:"file_path"`
	FileID          string `json:"file_id"`
	BucketName      string `json:"bucketname"`
	Endpoint        string `json:"endpoint"`
}
