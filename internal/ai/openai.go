package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// OpenAIClient OpenAI 兼容接口（chat completions 和 embeddings），
// baseURL 可以指向本地的兼容服务
type OpenAIClient struct {
	client     openai.Client
	chatModel  string
	embedModel string
	embedDim   int
	limiter    *rate.Limiter
}

func NewOpenAIClient(baseURL, apiKey, chatModel, embedModel string, timeout time.Duration, rpmLimit int, opts ...option.RequestOption) *OpenAIClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := []option.RequestOption{option.WithRequestTimeout(timeout)}
	if apiKey != "" {
		base = append(base, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client:     openai.NewClient(append(base, opts...)...),
		chatModel:  chatModel,
		embedModel: embedModel,
		limiter:    newLimiter(rpmLimit),
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
		TopP:        openai.Float(float64(req.TopP)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.embedModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	values := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		values[i] = float32(v)
	}
	if c.embedDim > 0 && len(values) != c.embedDim {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.embedDim, len(values))
	}
	return values, nil
}
