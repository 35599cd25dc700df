package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liao/pdf-chatbot/internal/ai"
	"github.com/liao/pdf-chatbot/internal/auth"
	"github.com/liao/pdf-chatbot/internal/chat"
	"github.com/liao/pdf-chatbot/internal/config"
	"github.com/liao/pdf-chatbot/internal/qa"
	"github.com/liao/pdf-chatbot/internal/rag"
	"github.com/liao/pdf-chatbot/internal/storage"
)

// Backend 按 history.driver 打开的历史存储和用户存储。
// memory 模式没有用户表，Users 为 nil。
type Backend struct {
	History chat.Store
	Users   auth.Store
	close   func()
}

func OpenBackend(ctx context.Context, cfg config.HistoryConfig) (*Backend, error) {
	switch cfg.Driver {
	case "memory":
		store, err := chat.NewMemoryStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open memory history: %w", err)
		}
		return &Backend{History: store, close: func() {}}, nil

	case "sqlite":
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{
			History: chat.NewSQLiteStore(db),
			Users:   auth.NewSQLiteStore(db),
			close:   func() { db.Close() },
		}, nil

	case "postgres":
		pool, err := storage.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Backend{
			History: chat.NewPostgresStore(pool),
			Users:   auth.NewPostgresStore(pool),
			close:   pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown history driver: %s", cfg.Driver)
	}
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenVectorStore 打开向量库，查询时用 embedder 生成向量
func OpenVectorStore(cfg config.RAGConfig, embedder ai.Embedder) (*rag.Store, error) {
	store, err := rag.NewStore(cfg.VectorsDir, cfg.Collection, embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	if store.Count() == 0 {
		slog.Warn("vector store is empty, run ingest first", "dir", cfg.VectorsDir)
	}
	return store, nil
}

// NewAnswerer 组装问答流程需要的全部外部服务
func NewAnswerer(ctx context.Context, cfg *config.Config, history chat.Store) (*qa.Answerer, error) {
	embedder, err := ai.NewEmbedder(ctx, cfg.Embedding, cfg.LLM.RPMLimit, cfg.LLM.Timeout)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	generator, err := ai.NewGenerator(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	store, err := OpenVectorStore(cfg.RAG, embedder)
	if err != nil {
		return nil, err
	}

	slog.Info("answerer ready",
		"llm", cfg.LLM.Provider,
		"model", cfg.LLM.ChatModels[0],
		"embedding", cfg.Embedding.Provider,
		"vectors", store.Count(),
	)
	return qa.NewAnswerer(embedder, store, generator, history), nil
}
