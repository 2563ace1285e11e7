// Package api provides the Swagger documentation for the API.
package api

// @title           Qwen Bridge
// @version         1.0.0
// @description     A Go service that exposes an OpenAI-compatible chat completions API and translates it to the Qwen chat service, including session management, multimodal asset upload to object storage, and phase-aware stream translation.
// @termsOfService  https://github.com/airelay/qwen-bridge/blob/main/LICENSE

// @contact.name   API Support
// @contact.url    https://github.com/airelay/qwen-bridge

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8082
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the API key value.
