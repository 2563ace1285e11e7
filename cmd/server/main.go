package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airelay/qwen-bridge/internal/app"
	"github.com/airelay/qwen-bridge/internal/logger"
)

// @title           Qwen Bridge
// @version         1.0
// @description     An OpenAI-compatible gateway in front of the Qwen chat service, with multimodal upload and streaming translation.

// @contact.name   API Support
// @contact.url    https://github.com/airelay/qwen-bridge

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the API key value.

func main() {
	// Initialize structured logging
	if err := logger.InitFromEnv(); err != nil {
		// Can't use logger here as it failed to initialize
		_, _ = os.Stderr.WriteString("FATAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx := context.Background()

	application, err := app.NewApp(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to initialize application", err)
		os.Exit(1)
	}

	handler := application.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	logger.Info(ctx, "Server starting", "address", addr)

	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: application.Config.Server.ReadTimeout,
		// WriteTimeout stays at the configured value, zero by default:
		// chat streams are long-lived and must not be cut mid-response.
		WriteTimeout: application.Config.Server.WriteTimeout,
		IdleTimeout:  application.Config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error(ctx, "Server failed", err)
		application.Shutdown(ctx)
		os.Exit(1)
	case sig := <-stop:
		logger.Info(ctx, "Shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Graceful shutdown failed", err)
	}
	application.Shutdown(shutdownCtx)
	logger.Info(ctx, "Server stopped")
}
