package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger levels
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	ComponentKey contextKey = "component"
	StageKey     contextKey = "stage"
	ModeKey      contextKey = "chat_mode"
	ModelKey     contextKey = "model"
)

// Config holds logger configuration
type Config struct {
	Level       slog.Level
	Format      string // "json" or "text"
	Output      string // "stdout", "stderr", or file path
	ServiceName string
	Environment string
}

// DefaultConfig is used when no explicit configuration is provided
var DefaultConfig = Config{
	Level:       LevelInfo,
	Format:      "json",
	Output:      "stdout",
	ServiceName: "qwen-bridge",
	Environment: "development",
}

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init configures the global logger
func Init(config Config) error {
	var output *os.File
	var err error

	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		output, err = os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
	}

	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	base := slog.New(handler).With(
		"service", config.ServiceName,
		"environment", config.Environment,
	)

	mu.Lock()
	logger = base
	mu.Unlock()
	return nil
}

// InitFromEnv initializes the logger from LOG_LEVEL, LOG_FORMAT,
// LOG_OUTPUT, SERVICE_NAME and ENVIRONMENT
func InitFromEnv() error {
	config := DefaultConfig

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		switch strings.ToUpper(level) {
		case "DEBUG":
			config.Level = LevelDebug
		case "INFO":
			config.Level = LevelInfo
		case "WARN", "WARNING":
			config.Level = LevelWarn
		case "ERROR":
			config.Level = LevelError
		}
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = format
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		config.Output = output
	}
	if serviceName := os.Getenv("SERVICE_NAME"); serviceName != "" {
		config.ServiceName = serviceName
	}
	if environment := os.Getenv("ENVIRONMENT"); environment != "" {
		config.Environment = environment
	}

	return Init(config)
}

// WithComponent tags the context with the emitting component name
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

// WithStage tags the context with the current processing stage
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithRequestID tags the context with the correlation request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithMode tags the context with the classified chat mode
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, ModeKey, mode)
}

// RequestIDFromContext returns the correlation request ID, if set
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// get returns the global logger, initializing defaults on first use
func get() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	if err := Init(DefaultConfig); err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LevelDebug}))
	}
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// appendContextValues lifts the well-known context keys into log attributes
func appendContextValues(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	for _, key := range []contextKey{RequestIDKey, ComponentKey, StageKey, ModeKey, ModelKey} {
		if v := ctx.Value(key); v != nil {
			args = append(args, string(key), v)
		}
	}
	return args
}

// Debug logs a debug message enriched with context values
func Debug(ctx context.Context, msg string, args ...any) {
	get().DebugContext(ctx, msg, appendContextValues(ctx, args)...)
}

// Info logs an info message enriched with context values
func Info(ctx context.Context, msg string, args ...any) {
	get().InfoContext(ctx, msg, appendContextValues(ctx, args)...)
}

// Warn logs a warning message enriched with context values
func Warn(ctx context.Context, msg string, args ...any) {
	get().WarnContext(ctx, msg, appendContextValues(ctx, args)...)
}

// Error logs an error message enriched with context values
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error(), "error_type", fmt.Sprintf("%T", err))
	}
	get().ErrorContext(ctx, msg, appendContextValues(ctx, args)...)
}
