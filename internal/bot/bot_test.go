package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/liao/pdf-chatbot/internal/chat"
	"github.com/liao/pdf-chatbot/internal/config"
	"github.com/liao/pdf-chatbot/internal/qa"
)

func TestUserKey(t *testing.T) {
	assert.Equal(t, "qq:123456", userKey(123456))
}

func TestAllowed(t *testing.T) {
	b := New(&config.Config{Bot: config.BotConfig{OwnerQQ: 1}}, nil)
	assert.True(t, b.allowed(42))

	b.cfg.Bot.AllowedQQ = []int64{2, 3}
	assert.True(t, b.allowed(1))
	assert.True(t, b.allowed(3))
	assert.False(t, b.allowed(42))
}

func TestReplies(t *testing.T) {
	assert.Equal(t, []string{"answer"}, replies("answer", nil))

	saveErr := &qa.Error{Kind: qa.ErrPersistence, Op: "append history", Err: chat.ErrStorageUnavailable}
	assert.Equal(t, []string{"answer", "The answer was generated but could not be saved to your history."}, replies("answer", saveErr))

	genErr := &qa.Error{Kind: qa.ErrGeneration, Op: "generate answer", Err: errors.New("boom")}
	assert.Equal(t, []string{"No answer could be generated, please try again later."}, replies("", genErr))
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "No history yet.", formatHistory(nil))
	assert.Equal(t, "1. Q: q1\nA: a1\n\n2. Q: q2\nA: a2", formatHistory([]chat.Turn{
		{Query: "q1", Answer: "a1"},
		{Query: "q2", Answer: "a2"},
	}))
}

func TestStatusText(t *testing.T) {
	b := New(&config.Config{
		LLM:     config.LLMConfig{Provider: "gemini", ChatModels: []string{"gemini-2.5-flash", "gemini-2.0-flash"}},
		History: config.HistoryConfig{Driver: "sqlite"},
	}, nil)

	text := b.statusText(b.started.Add(90 * time.Second))
	assert.Contains(t, text, "uptime: 1m30s")
	assert.Contains(t, text, "llm: gemini (gemini-2.5-flash, gemini-2.0-flash)")
	assert.Contains(t, text, "history: sqlite")
}
