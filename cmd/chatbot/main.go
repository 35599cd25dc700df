package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/liao/pdf-chatbot/internal/app"
	"github.com/liao/pdf-chatbot/internal/config"
	"github.com/liao/pdf-chatbot/internal/tui"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	// 终端被界面占用，日志只写文件
	logOut, closeLog, err := openLog(cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file failed: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := app.OpenBackend(ctx, cfg.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open history backend failed: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()
	if backend.Users == nil {
		fmt.Fprintf(os.Stderr, "history driver %q has no user accounts, use sqlite or postgres\n", cfg.History.Driver)
		os.Exit(1)
	}

	answerer, err := app.NewAnswerer(ctx, cfg, backend.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create answerer failed: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(tui.New(ctx, backend.Users, answerer), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("tui exited with error", "error", err)
		os.Exit(1)
	}
}

func openLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
