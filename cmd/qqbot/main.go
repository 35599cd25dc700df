package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/liao/pdf-chatbot/internal/app"
	"github.com/liao/pdf-chatbot/internal/bot"
	"github.com/liao/pdf-chatbot/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 历史存储
	backend, err := app.OpenBackend(ctx, cfg.History)
	if err != nil {
		slog.Error("open history backend failed", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// 向量库 + 模型
	answerer, err := app.NewAnswerer(ctx, cfg, backend.History)
	if err != nil {
		slog.Error("create answerer failed", "error", err)
		os.Exit(1)
	}

	b := bot.New(cfg, answerer)

	// 优雅关闭
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("shutting down...")
		b.Stop()
		cancel()
		backend.Close()
		os.Exit(0)
	}()

	b.Run(ctx)
}
