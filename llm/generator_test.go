package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiGenerator(t *testing.T) {
	t.Run("Missing api key fails", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		_, err := NewGeminiGenerator("", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing api key")
	})

	t.Run("Api key from environment", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "env-key")
		generator, err := NewGeminiGenerator("", "")
		require.NoError(t, err)
		assert.Equal(t, "env-key", generator.apiKey)
	})

	t.Run("Empty model falls back to default", func(t *testing.T) {
		generator, err := NewGeminiGenerator("key", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultGeminiModel, generator.model)
	})

	t.Run("Explicit model is kept", func(t *testing.T) {
		generator, err := NewGeminiGenerator("key", "gemini-2.0-pro")
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.0-pro", generator.model)
	})
}
