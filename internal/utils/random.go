package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator provides centralized ID generation functionality
type IDGenerator struct{}

// NewIDGenerator creates a new ID generator
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GenerateRequestID generates a unique request ID (UUID)
func (g *IDGenerator) GenerateRequestID() string {
	return uuid.New().String()
}

// GenerateChatCompletionID generates an OpenAI-compatible chat completion ID
func (g *IDGenerator) GenerateChatCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", g.generateHex(16))
}

// GenerateSessionID generates a backend session identifier
func (g *IDGenerator) GenerateSessionID() string {
	return uuid.New().String()
}

// GenerateConversationID generates a conversation identifier
func (g *IDGenerator) GenerateConversationID() string {
	return uuid.New().String()
}

// generateHex generates a random hex string of the given byte length
func (g *IDGenerator) generateHex(byteLength int) string {
	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failing is unrecoverable for ID purposes
		return uuid.New().String()
	}
	return hex.EncodeToString(bytes)
}

// Global ID generator instance
var globalIDGenerator = NewIDGenerator()

// GenerateRequestID generates a unique request ID using the global generator
func GenerateRequestID() string {
	return globalIDGenerator.GenerateRequestID()
}

// GenerateChatCompletionID generates a chat completion ID using the global generator
func GenerateChatCompletionID() string {
	return globalIDGenerator.GenerateChatCompletionID()
}

// GenerateSessionID generates a session ID using the global generator
func GenerateSessionID() string {
	return globalIDGenerator.GenerateSessionID()
}

// GenerateConversationID generates a conversation ID using the global generator
func GenerateConversationID() string {
	return globalIDGenerator.GenerateConversationID()
}
