package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, GenerateRequestID())
}

func TestGenerateChatCompletionID(t *testing.T) {
	id := GenerateChatCompletionID()
	require.True(t, strings.HasPrefix(id, "chatcmpl-"))
	assert.Len(t, strings.TrimPrefix(id, "chatcmpl-"), 32)
}

func TestGenerateSessionAndConversationIDs(t *testing.T) {
	_, err := uuid.Parse(GenerateSessionID())
	assert.NoError(t, err)
	_, err = uuid.Parse(GenerateConversationID())
	assert.NoError(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("UTILS_TEST_STR", "value")
	assert.Equal(t, "value", GetEnv("UTILS_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnv("UTILS_TEST_UNSET", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("UTILS_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("UTILS_TEST_INT", 7))

	t.Setenv("UTILS_TEST_INT", "not a number")
	assert.Equal(t, 7, GetEnvInt("UTILS_TEST_INT", 7))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("UTILS_TEST_BOOL", "true")
	assert.True(t, GetEnvBool("UTILS_TEST_BOOL", false))

	t.Setenv("UTILS_TEST_BOOL", "junk")
	assert.False(t, GetEnvBool("UTILS_TEST_BOOL", false))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("UTILS_TEST_DUR", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetEnvDuration("UTILS_TEST_DUR", time.Second))

	// Bare numbers are treated as seconds.
	t.Setenv("UTILS_TEST_DUR", "30")
	assert.Equal(t, 30*time.Second, GetEnvDuration("UTILS_TEST_DUR", time.Second))

	t.Setenv("UTILS_TEST_DUR", "garbage")
	assert.Equal(t, time.Second, GetEnvDuration("UTILS_TEST_DUR", time.Second))
}
