package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// 文件复制过程中会连续触发多次写事件，静默一段时间后再入库
const watchDebounce = 2 * time.Second

// Watch 监听 dir 下 PDF 的增删改，变化后重新入库该文件，直到 ctx 结束
func (in *Ingester) Watch(ctx context.Context, dir string) error {
	return in.watch(ctx, dir, watchDebounce)
}

func (in *Ingester) watch(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("watching docs dir", "dir", dir)

	pending := make(map[string]*time.Timer)
	ready := make(chan string, 16)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) || !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			name := event.Name
			if t, ok := pending[name]; ok {
				t.Reset(debounce)
				continue
			}
			pending[name] = time.AfterFunc(debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(pending, name)
			in.sync(ctx, name)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// sync 文件存在则重新入库，不存在则删除其片段
func (in *Ingester) sync(ctx context.Context, file string) {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		if err := in.Remove(ctx, file); err != nil {
			slog.Error("remove document failed", "file", file, "error", err)
			return
		}
		slog.Info("document removed", "file", file)
		return
	}

	n, err := in.IngestFile(ctx, file)
	if err != nil {
		slog.Error("re-ingest failed", "file", file, "error", err)
		return
	}
	slog.Info("document re-ingested", "file", file, "passages", n)
}
