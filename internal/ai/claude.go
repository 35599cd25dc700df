package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// ClaudeClient 只负责回答生成，向量化仍由 embedding.provider 提供
type ClaudeClient struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
}

func NewClaudeClient(apiKey, model string, rpmLimit int, opts ...option.RequestOption) *ClaudeClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client:  anthropic.NewClient(opts...),
		model:   model,
		limiter: newLimiter(rpmLimit),
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	// 新模型不接受同时设置 temperature 和 top_p，1.0 即默认值
	if req.TopP > 0 && req.TopP < 1 {
		params.TopP = anthropic.Float(float64(req.TopP))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	slog.Debug("generated answer", "model", c.model, "length", len(text))
	return text, nil
}
