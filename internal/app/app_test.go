package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/pdf-chatbot/internal/config"
)

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		b, err := OpenBackend(ctx, config.HistoryConfig{Driver: "memory"})
		require.NoError(t, err)
		defer b.Close()
		assert.Nil(t, b.Users)
		require.NoError(t, b.History.Append(ctx, "alice", "q", "a"))
	})

	t.Run("sqlite", func(t *testing.T) {
		b, err := OpenBackend(ctx, config.HistoryConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "db", "chat.db")})
		require.NoError(t, err)
		defer b.Close()
		require.NotNil(t, b.Users)

		require.NoError(t, b.Users.Register(ctx, "alice", "pw"))
		require.NoError(t, b.History.Append(ctx, "alice", "q", "a"))
		turns, err := b.History.FetchAll(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, turns, 1)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenBackend(ctx, config.HistoryConfig{Driver: "mongo"})
		assert.Error(t, err)
	})
}

func TestOpenBackend_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	b, err := OpenBackend(context.Background(), config.HistoryConfig{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	b.Close()
}

func TestNewAnswerer(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Provider:   "openai",
			BaseURL:    "http://127.0.0.1:1/v1",
			ChatModels: []string{"gpt-3.5-turbo"},
			Timeout:    time.Second,
		},
		Embedding: config.EmbeddingConfig{
			Provider: "openai",
			BaseURL:  "http://127.0.0.1:1/v1",
			Model:    "all-MiniLM-L6-v2",
		},
		RAG: config.RAGConfig{VectorsDir: filepath.Join(t.TempDir(), "vectors"), Collection: "documents"},
	}

	b, err := OpenBackend(context.Background(), config.HistoryConfig{Driver: "memory"})
	require.NoError(t, err)
	a, err := NewAnswerer(context.Background(), cfg, b.History)
	require.NoError(t, err)
	assert.NotNil(t, a)

	cfg.LLM.Provider = "bard"
	_, err = NewAnswerer(context.Background(), cfg, b.History)
	assert.Error(t, err)
}
