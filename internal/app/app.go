package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/airelay/qwen-bridge/internal/account"
	"github.com/airelay/qwen-bridge/internal/config"
	"github.com/airelay/qwen-bridge/internal/database"
	"github.com/airelay/qwen-bridge/internal/handlers"
	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/middleware"
	"github.com/airelay/qwen-bridge/internal/qwen"
	"github.com/airelay/qwen-bridge/internal/reliability"
	"github.com/airelay/qwen-bridge/internal/router"
	"github.com/airelay/qwen-bridge/internal/translator"
	"github.com/airelay/qwen-bridge/internal/upload"
)

// App centralizes the application's dependencies and configuration
type App struct {
	Config   *config.Config
	Client   *qwen.Client
	Tokens   account.TokenProvider
	Uploader *upload.Uploader
	Recorder *database.Recorder
	Handlers *handlers.APIHandlers
}

// NewApp creates a new App instance with all dependencies
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tokens, err := account.NewRotatingProvider(cfg.Auth.AccountTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize account tokens: %w", err)
	}

	client := qwen.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.RequestTimeout, cfg.Upstream.ChatTimeout)

	retryConfig := reliability.DefaultRetryConfig()
	retryConfig.MaxAttempts = cfg.Upload.MaxRetries
	retryConfig.InitialDelay = cfg.Upload.InitialDelay

	uploader := upload.NewUploader(client, upload.NewCache(),
		upload.WithRetryConfig(retryConfig),
		upload.WithMaxAssetBytes(cfg.Upload.MaxAssetBytes),
	)

	requestTranslator := translator.NewRequestTranslator(client, uploader)

	recorder, err := database.NewRecorder(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
	if err != nil {
		// Exchange logging is optional; run without it rather than fail startup
		logger.Warn(ctx, "Exchange recorder unavailable, continuing without it", "error", err.Error())
		recorder = nil
	}

	apiHandlers := handlers.NewAPIHandlers(requestTranslator, client, tokens, recorder, cfg.Stream.BufferCeiling)

	logger.Info(ctx, "Application initialized",
		"upstream_base_url", cfg.Upstream.BaseURL,
		"account_tokens", tokens.Size(),
		"exchange_log", recorder != nil,
	)

	return &App{
		Config:   cfg,
		Client:   client,
		Tokens:   tokens,
		Uploader: uploader,
		Recorder: recorder,
		Handlers: apiHandlers,
	}, nil
}

// SetupRoutes builds the full HTTP handler chain for the application
func (a *App) SetupRoutes() http.Handler {
	handler := router.SetupRoutes(a.Handlers)
	handler = middleware.AuthMiddleware(a.Config.Auth.GatewayAPIKey, handler)
	handler = middleware.RequestCorrelationMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)
	return handler
}

// Shutdown releases resources held by the application
func (a *App) Shutdown(ctx context.Context) {
	if a.Recorder != nil {
		if err := a.Recorder.Close(ctx); err != nil {
			logger.Warn(ctx, "Failed to close exchange recorder", "error", err.Error())
		}
	}
}
