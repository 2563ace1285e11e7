// Package docs provides the Swagger documentation for the API.
package docs

// @title           Qwen Bridge
// @version         1.0
// @description     An OpenAI-compatible gateway in front of the Qwen chat service, with multimodal upload and streaming translation.

// @contact.name   API Support
// @contact.url    https://github.com/airelay/qwen-bridge

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      0.0.0.0:8082
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the API key value.
