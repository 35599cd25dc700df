package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/liao/pdf-chatbot/internal/config"
)

var ErrEmptyResponse = errors.New("empty model response")

// Request 一次性的回答生成请求
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewGenerator 按 llm.provider 创建回答生成客户端
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.ChatModels, "", 0, cfg.RPMLimit)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.ChatModels[0], cfg.RPMLimit), nil
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.ChatModels[0], "", cfg.Timeout, cfg.RPMLimit), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// NewEmbedder 按 embedding.provider 创建向量化客户端
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, rpmLimit int, timeout time.Duration) (Embedder, error) {
	switch cfg.Provider {
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, nil, cfg.Model, cfg.Dimension, rpmLimit)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		c := NewOpenAIClient(cfg.BaseURL, cfg.APIKey, "", cfg.Model, timeout, rpmLimit)
		c.embedDim = cfg.Dimension
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// newLimiter 每分钟 rpm 次请求；rpm <= 0 表示不限流
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}
