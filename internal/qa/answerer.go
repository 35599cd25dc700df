package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liao/pdf-chatbot/internal/ai"
	"github.com/liao/pdf-chatbot/internal/chat"
	"github.com/liao/pdf-chatbot/internal/rag"
)

// 回答参数，固定不可配置
const (
	TopK        = 15
	MaxTokens   = 500
	Temperature = 0.5
	TopP        = 1.0
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, vector []float32, topK int) ([]rag.Passage, error)
}

type Generator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// Answerer 检索增强问答：向量化 → 检索 → 组装上下文 → 生成 → 写入历史。
// 内部不做重试，失败原因通过 *Error 返回。
type Answerer struct {
	embedder  Embedder
	store     VectorStore
	generator Generator
	history   chat.Store
}

func NewAnswerer(embedder Embedder, store VectorStore, generator Generator, history chat.Store) *Answerer {
	return &Answerer{
		embedder:  embedder,
		store:     store,
		generator: generator,
		history:   history,
	}
}

// Answer 回答 user 的问题。
// 写入历史失败时仍返回答案，同时返回 ErrPersistence。
func (a *Answerer) Answer(ctx context.Context, user, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", newError(ErrInvalidInput, "check query", nil)
	}

	// 历史读取失败不影响回答
	turns, err := a.history.FetchAll(ctx, user)
	if err != nil {
		slog.Warn("fetch history failed, answering without it", "user", user, "error", err)
		turns = nil
	}

	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return "", newError(ErrEmbedding, "embed query", err)
	}

	passages, err := a.store.Search(ctx, vector, TopK)
	if err != nil {
		return "", newError(ErrRetrieval, "search passages", err)
	}
	slog.Debug("passages retrieved", "user", user, "count", len(passages), "history", len(turns))

	prompt := ai.UserPrompt(rag.BuildContext(passages, turns), query)
	answer, err := a.generator.Generate(ctx, ai.Request{
		System:      ai.SystemInstruction,
		Prompt:      prompt,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		TopP:        TopP,
	})
	if err != nil {
		return "", newError(ErrGeneration, "generate answer", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", newError(ErrGeneration, "generate answer", ai.ErrEmptyResponse)
	}

	if err := a.history.Append(ctx, user, query, answer); err != nil {
		slog.Error("save history failed", "user", user, "error", err)
		return answer, newError(ErrPersistence, "append history", err)
	}
	return answer, nil
}

// History 返回用户已保存的问答，登录后展示用
func (a *Answerer) History(ctx context.Context, user string) ([]chat.Turn, error) {
	turns, err := a.history.FetchAll(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return turns, nil
}
