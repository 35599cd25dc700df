package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/liao/pdf-chatbot/internal/app"
	"github.com/liao/pdf-chatbot/internal/auth"
	"github.com/liao/pdf-chatbot/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	username := flag.String("user", "", "username to create")
	password := flag.String("password", "", "password (read from stdin if empty)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *username == "" {
		fmt.Fprintf(os.Stderr, "Usage: useradd -user <name> [-password <pw>] [-config <file>]\n")
		os.Exit(1)
	}

	pw := *password
	if pw == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "read password failed: %v\n", err)
			os.Exit(1)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, cfg.History)
	if err != nil {
		slog.Error("open history backend failed", "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	if backend.Users == nil {
		fmt.Fprintf(os.Stderr, "history driver %q has no user accounts\n", cfg.History.Driver)
		os.Exit(1)
	}

	if err := backend.Users.Register(ctx, *username, pw); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Fprintf(os.Stderr, "user %q already exists\n", *username)
		} else {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("user %q created\n", *username)
}
