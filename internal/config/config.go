package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/airelay/qwen-bridge/internal/utils"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Upstream UpstreamConfig `json:"upstream"`
	Upload   UploadConfig   `json:"upload"`
	Stream   StreamConfig   `json:"stream"`
	Auth     AuthConfig     `json:"auth"`
	Database DatabaseConfig `json:"database"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// UpstreamConfig holds the backend chat service configuration
type UpstreamConfig struct {
	BaseURL        string        `json:"base_url" validate:"required,url"`
	RequestTimeout time.Duration `json:"request_timeout"`
	ChatTimeout    time.Duration `json:"chat_timeout"`
}

// UploadConfig holds the asset upload configuration
type UploadConfig struct {
	MaxAssetBytes int64         `json:"max_asset_bytes" validate:"gt=0"`
	MaxRetries    int           `json:"max_retries" validate:"gte=0"`
	InitialDelay  time.Duration `json:"initial_delay"`
}

// StreamConfig holds the stream translation configuration
type StreamConfig struct {
	BufferCeiling int `json:"buffer_ceiling" validate:"gt=0"`
}

// AuthConfig holds gateway and upstream credentials
type AuthConfig struct {
	GatewayAPIKey string   `json:"-"`
	AccountTokens []string `json:"-" validate:"min=1,dive,required"`
}

// DatabaseConfig holds the optional exchange log configuration
type DatabaseConfig struct {
	MongoURI      string `json:"-"`
	MongoDatabase string `json:"mongo_database"`
}

// Load builds the configuration from the environment, after loading
// any .env file found in the usual locations.
func Load() (*Config, error) {
	if err := LoadEnvFromMultiplePaths(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         utils.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         utils.GetEnvInt("SERVER_PORT", 8082),
			ReadTimeout:  utils.GetEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: utils.GetEnvDuration("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:  utils.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:        utils.GetEnv("UPSTREAM_BASE_URL", "https://chat.qwen.ai"),
			RequestTimeout: utils.GetEnvDuration("UPSTREAM_REQUEST_TIMEOUT", 30*time.Second),
			ChatTimeout:    utils.GetEnvDuration("UPSTREAM_CHAT_TIMEOUT", 1200*time.Second),
		},
		Upload: UploadConfig{
			MaxAssetBytes: int64(utils.GetEnvInt("UPLOAD_MAX_ASSET_BYTES", 20*1024*1024)),
			MaxRetries:    utils.GetEnvInt("UPLOAD_MAX_RETRIES", 3),
			InitialDelay:  utils.GetEnvDuration("UPLOAD_INITIAL_DELAY", 500*time.Millisecond),
		},
		Stream: StreamConfig{
			BufferCeiling: utils.GetEnvInt("STREAM_BUFFER_CEILING", 2*1024*1024),
		},
		Auth: AuthConfig{
			GatewayAPIKey: utils.GetEnv("GATEWAY_API_KEY", ""),
			AccountTokens: splitTokens(utils.GetEnv("UPSTREAM_TOKENS", "")),
		},
		Database: DatabaseConfig{
			MongoURI:      utils.GetEnv("MONGODB_URI", ""),
			MongoDatabase: utils.GetEnv("MONGODB_DATABASE", "qwen_bridge"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid configuration: field %s failed %q constraint", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// splitTokens parses a comma-separated token list, dropping empties
func splitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	var tokens []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
