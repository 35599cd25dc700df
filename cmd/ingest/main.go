package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/liao/pdf-chatbot/internal/ai"
	"github.com/liao/pdf-chatbot/internal/app"
	"github.com/liao/pdf-chatbot/internal/config"
	"github.com/liao/pdf-chatbot/internal/ingest"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	docsDir := flag.String("docs", "", "directory of PDF files (overrides ingest.docs_dir)")
	linksFile := flag.String("links", "", "link manifest .csv/.yaml/.html (overrides ingest.links_file)")
	watch := flag.Bool("watch", false, "keep running and re-ingest PDFs when they change")
	schedule := flag.Bool("schedule", false, "keep running and re-ingest on ingest.schedule")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	if *docsDir != "" {
		cfg.Ingest.DocsDir = *docsDir
	}
	if *linksFile != "" {
		cfg.Ingest.LinksFile = *linksFile
	}
	if *schedule && cfg.Ingest.Schedule == "" {
		fmt.Fprintf(os.Stderr, "Error: -schedule requires ingest.schedule in the config\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. 链接清单
	links, err := ingest.LoadLinks(cfg.Ingest.LinksFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("load links failed", "error", err)
			os.Exit(1)
		}
		slog.Warn("links file not found, documents will have no link", "file", cfg.Ingest.LinksFile)
		links = ingest.Links{}
	}
	slog.Info("links loaded", "count", len(links))

	// 2. 向量化客户端 + 向量库
	embedder, err := ai.NewEmbedder(ctx, cfg.Embedding, cfg.LLM.RPMLimit, cfg.LLM.Timeout)
	if err != nil {
		slog.Error("create embedder failed", "error", err)
		os.Exit(1)
	}
	store, err := app.OpenVectorStore(cfg.RAG, embedder)
	if err != nil {
		slog.Error("open vector store failed", "error", err)
		os.Exit(1)
	}

	in := ingest.New(ingest.NewPDFExtractor(), embedder, store, links,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithProgressFile(progressFile(cfg.RAG.VectorsDir)),
	)

	// 3. 全量入库
	report, err := in.Run(ctx, cfg.Ingest.DocsDir)
	if err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	fmt.Print(report)
	fmt.Printf("Vectors dir: %s\n", cfg.RAG.VectorsDir)

	// 4. 常驻模式
	switch {
	case *watch && *schedule:
		go func() {
			if err := in.Schedule(ctx, cfg.Ingest.Schedule, cfg.Ingest.DocsDir); err != nil {
				slog.Error("schedule failed", "error", err)
				cancel()
			}
		}()
		err = in.Watch(ctx, cfg.Ingest.DocsDir)
	case *watch:
		err = in.Watch(ctx, cfg.Ingest.DocsDir)
	case *schedule:
		err = in.Schedule(ctx, cfg.Ingest.Schedule, cfg.Ingest.DocsDir)
	}
	if err != nil {
		slog.Error("ingest stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("done!")
}

// progressFile 断点续传记录；向量库只在内存中时不记录
func progressFile(vectorsDir string) string {
	if vectorsDir == "" {
		return ""
	}
	return filepath.Join(vectorsDir, ".progress")
}
