package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig(t *testing.T) {
	client, err := NewWithConfig(ClientConfig{APIKey: "test-key"})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.config.Model)
	assert.Equal(t, 2000, client.config.MaxTokens)
}

func TestNewWithConfigRejectsBadTemperature(t *testing.T) {
	_, err := NewWithConfig(ClientConfig{APIKey: "test-key", Temperature: 2.5})
	assert.Error(t, err)

	_, err = NewWithConfig(ClientConfig{APIKey: "test-key", Temperature: -0.1})
	assert.Error(t, err)
}

func TestNewWithConfigRejectsNegativeMaxTokens(t *testing.T) {
	_, err := NewWithConfig(ClientConfig{APIKey: "test-key", MaxTokens: -1})
	assert.Error(t, err)
}

func TestNewEmbedderWithConfig(t *testing.T) {
	embedder, err := NewEmbedderWithConfig(EmbedderConfig{APIKey: "test-key"})

	require.NoError(t, err)
	assert.Equal(t, "text-embedding-ada-002", embedder.config.Model)
}
