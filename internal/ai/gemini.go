package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type GeminiClient struct {
	client     *genai.Client
	chatModels []string // 多模型轮换
	modelIdx   atomic.Int64
	embedModel string
	embedDim   int
	limiter    *rate.Limiter
}

func NewGeminiClient(ctx context.Context, apiKey string, chatModels []string, embedModel string, embedDim int, rpmLimit int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		chatModels: chatModels,
		embedModel: embedModel,
		embedDim:   embedDim,
		limiter:    newLimiter(rpmLimit),
	}, nil
}

// currentModel 获取当前模型
func (c *GeminiClient) currentModel() string {
	idx := c.modelIdx.Load() % int64(len(c.chatModels))
	return c.chatModels[idx]
}

// rotateModel 切换到下一个模型
func (c *GeminiClient) rotateModel() string {
	newIdx := c.modelIdx.Add(1) % int64(len(c.chatModels))
	model := c.chatModels[newIdx]
	slog.Info("rotating to next model", "model", model)
	return model
}

// Generate 单轮生成，配额耗尽（429）时切换到下一个模型，每个模型最多一次
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if len(c.chatModels) == 0 {
		return "", fmt.Errorf("no chat model configured")
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		TopP:            genai.Ptr(req.TopP),
		MaxOutputTokens: req.MaxTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	var lastErr error
	for attempt := 0; attempt < len(c.chatModels); attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		model := c.currentModel()
		resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			lastErr = err
			if isQuotaError(err) {
				slog.Warn("model quota exceeded, switching", "model", model, "attempt", attempt+1)
				c.rotateModel()
				continue
			}
			return "", fmt.Errorf("generate with %s: %w", model, err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", ErrEmptyResponse
		}
		slog.Debug("generated answer", "model", model, "length", len(text))
		return text, nil
	}
	return "", fmt.Errorf("all models exhausted after %d attempts: %w", len(c.chatModels), lastErr)
}

// Embed 生成文本嵌入向量，限流时退避重试
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if c.embedDim > 0 {
		dim := int32(c.embedDim)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.client.Models.EmbedContent(ctx, c.embedModel,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
		if err != nil {
			lastErr = err
			if !isQuotaError(err) {
				return nil, fmt.Errorf("embed content: %w", err)
			}
			slog.Warn("embed rate limited, retrying", "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			}
			continue
		}
		if len(resp.Embeddings) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		values := resp.Embeddings[0].Values
		if c.embedDim > 0 && len(values) != c.embedDim {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.embedDim, len(values))
		}
		return values, nil
	}
	return nil, fmt.Errorf("embed failed after 3 attempts: %w", lastErr)
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
