package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	RAG       RAGConfig       `mapstructure:"rag"`
	History   HistoryConfig   `mapstructure:"history"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Bot       BotConfig       `mapstructure:"bot"`
	NapCat    NapCatConfig    `mapstructure:"napcat"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// LLMConfig 回答生成服务
type LLMConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=gemini claude openai"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	ChatModels []string      `mapstructure:"chat_models" validate:"min=1,dive,required"`
	RPMLimit   int           `mapstructure:"rpm_limit" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// EmbeddingConfig 向量化服务，必须和入库时使用的模型一致
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" validate:"oneof=gemini openai"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model" validate:"required"`
	Dimension int    `mapstructure:"dimension" validate:"gte=0"`
}

type RAGConfig struct {
	VectorsDir string `mapstructure:"vectors_dir" validate:"required"`
	Collection string `mapstructure:"collection" validate:"required"`
}

// HistoryConfig 聊天记录存储；memory 模式下 path 为快照文件
type HistoryConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type IngestConfig struct {
	DocsDir   string `mapstructure:"docs_dir" validate:"required"`
	LinksFile string `mapstructure:"links_file"`
	BatchSize int    `mapstructure:"batch_size" validate:"min=1"`
	Schedule  string `mapstructure:"schedule"`
}

type BotConfig struct {
	OwnerQQ   int64   `mapstructure:"owner_qq"`
	AllowedQQ []int64 `mapstructure:"allowed_qq"`
}

type NapCatConfig struct {
	WSURL       string `mapstructure:"ws_url"`
	AccessToken string `mapstructure:"access_token"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.chat_models", []string{"gemini-2.5-flash"})
	v.SetDefault("llm.rpm_limit", 60)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("rag.vectors_dir", "data/vectors")
	v.SetDefault("rag.collection", "documents")
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.path", "data/chatbot.db")
	v.SetDefault("ingest.docs_dir", "docs")
	v.SetDefault("ingest.links_file", "document_links.csv")
	v.SetDefault("ingest.batch_size", 20)
	v.SetDefault("napcat.ws_url", "ws://127.0.0.1:3001")
}

// Load 读取配置文件；文件不存在时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	// .env 不存在不算错误
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env failed", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil || !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Warn("config file not found, using defaults", "path", path)
	}

	// 环境变量覆盖
	overrides := map[string]string{
		"GEMINI_API_KEY":      "gemini",
		"ANTHROPIC_API_KEY":   "claude",
		"OPENAI_API_KEY":      "openai",
		"NAPCAT_ACCESS_TOKEN": "",
		"DATABASE_URL":        "",
	}
	for env, provider := range overrides {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		switch env {
		case "NAPCAT_ACCESS_TOKEN":
			v.Set("napcat.access_token", val)
		case "DATABASE_URL":
			v.Set("history.dsn", val)
		default:
			if v.GetString("llm.provider") == provider && v.GetString("llm.api_key") == "" {
				v.Set("llm.api_key", val)
			}
			if v.GetString("embedding.provider") == provider && v.GetString("embedding.api_key") == "" {
				v.Set("embedding.api_key", val)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验字段约束以及各 provider 需要的凭据
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.LLM.APIKey == "" && !(c.LLM.Provider == "openai" && c.LLM.BaseURL != "") {
		return fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider)
	}
	if c.Embedding.APIKey == "" && !(c.Embedding.Provider == "openai" && c.Embedding.BaseURL != "") {
		return fmt.Errorf("embedding.api_key is required for provider %q", c.Embedding.Provider)
	}
	switch c.History.Driver {
	case "sqlite":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for sqlite")
		}
	case "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for postgres (or set DATABASE_URL)")
		}
	}
	return nil
}

// SlogLevel 将配置中的日志级别转换为 slog.Level
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
