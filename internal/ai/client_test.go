package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/pdf-chatbot/internal/config"
)

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	g, err := NewGenerator(ctx, config.LLMConfig{Provider: "openai", ChatModels: []string{"gpt-3.5-turbo"}, Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, g)

	g, err = NewGenerator(ctx, config.LLMConfig{Provider: "claude", APIKey: "k", ChatModels: []string{"claude-sonnet-4-5"}})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, g)

	g, err = NewGenerator(ctx, config.LLMConfig{Provider: "gemini", APIKey: "k", ChatModels: []string{"gemini-2.5-flash"}})
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, g)

	_, err = NewGenerator(ctx, config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, config.EmbeddingConfig{Provider: "openai", Model: "m", Dimension: 384}, 0, time.Second)
	require.NoError(t, err)
	require.IsType(t, &OpenAIClient{}, e)
	assert.Equal(t, 384, e.(*OpenAIClient).embedDim)

	_, err = NewEmbedder(ctx, config.EmbeddingConfig{Provider: "word2vec"}, 0, time.Second)
	assert.Error(t, err)
}

func TestGeminiClient_RotateModel(t *testing.T) {
	c := &GeminiClient{chatModels: []string{"a", "b"}}
	assert.Equal(t, "a", c.currentModel())
	assert.Equal(t, "b", c.rotateModel())
	assert.Equal(t, "b", c.currentModel())
	assert.Equal(t, "a", c.rotateModel())
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("Error 429, Message: quota")))
	assert.True(t, isQuotaError(errors.New("RESOURCE_EXHAUSTED")))
	assert.False(t, isQuotaError(errors.New("invalid argument")))
}

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Wait(context.Background()))
	}

	limited := newLimiter(1)
	require.NoError(t, limited.Wait(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limited.Wait(ctx))
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt("ctx line", "what?")
	assert.Equal(t, "Given the following context:\n\nctx line\n\nAnswer the following question:\n\nwhat?", p)
	assert.True(t, strings.Contains(SystemInstruction, "document name"))
	assert.True(t, strings.Contains(SystemInstruction, "links of all the documents"))
}
