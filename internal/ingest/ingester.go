package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liao/pdf-chatbot/internal/rag"
)

type PageExtractor interface {
	ExtractPages(ctx context.Context, file string) ([]Page, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type PassageStore interface {
	Upsert(ctx context.Context, passages []rag.Passage, embeddings [][]float32) error
	DeleteDocument(ctx context.Context, document string) error
	Documents() []string
	Count() int
}

// Report 一次入库的统计
type Report struct {
	Files    int
	Skipped  int
	Pages    int
	Passages int
	Removed  int
	Vectors  int
	Duration time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf(`Ingest Report
=============
Files:     %d (skipped %d)
Pages:     %d
Passages:  %d
Removed:   %d
Vectors:   %d
Duration:  %s
`, r.Files, r.Skipped, r.Pages, r.Passages, r.Removed, r.Vectors, r.Duration.Round(time.Millisecond))
}

// Ingester 把目录下的 PDF 逐页向量化写入向量库
type Ingester struct {
	mu           sync.Mutex // 定时任务和监听模式不会同时写入
	extractor    PageExtractor
	embedder     Embedder
	store        PassageStore
	links        Links
	batchSize    int
	progressFile string
}

type Option func(*Ingester)

// WithProgressFile 记录已完成的文件，中断后从断点继续
func WithProgressFile(path string) Option {
	return func(in *Ingester) { in.progressFile = path }
}

func WithBatchSize(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.batchSize = n
		}
	}
}

func New(extractor PageExtractor, embedder Embedder, store PassageStore, links Links, opts ...Option) *Ingester {
	if links == nil {
		links = Links{}
	}
	in := &Ingester{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		links:     links,
		batchSize: 20,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run 入库 dir 下所有 PDF（不递归），单个文件失败会中止并保留进度。
// 全部完成后删除目录中已不存在的文件的片段
func (in *Ingester) Run(ctx context.Context, dir string) (Report, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	start := time.Now()
	var report Report

	files, err := listPDFs(dir)
	if err != nil {
		return report, err
	}

	done := in.loadProgress()
	if len(done) > 0 {
		slog.Info("resuming from checkpoint", "done", len(done))
	}

	for i, file := range files {
		name := filepath.Base(file)
		if done[name] {
			report.Skipped++
			continue
		}

		slog.Info("ingesting", "file", name, "progress", fmt.Sprintf("%d/%d", i+1, len(files)))
		pages, passages, err := in.ingest(ctx, file)
		if err != nil {
			return report, err
		}
		report.Files++
		report.Pages += pages
		report.Passages += passages

		done[name] = true
		if err := in.saveProgress(done); err != nil {
			slog.Warn("save progress failed", "error", err)
		}
	}

	// 全部完成后删除进度文件
	if in.progressFile != "" {
		os.Remove(in.progressFile)
	}

	removed, err := in.prune(ctx, files)
	report.Removed = removed
	if err != nil {
		return report, err
	}

	report.Vectors = in.store.Count()
	report.Duration = time.Since(start)
	slog.Info("ingest complete", "files", report.Files, "passages", report.Passages, "removed", report.Removed, "vectors", report.Vectors)
	return report, nil
}

// IngestFile 重新入库单个文件，先删掉该文件旧的片段
func (in *Ingester) IngestFile(ctx context.Context, file string) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	_, passages, err := in.ingest(ctx, file)
	return passages, err
}

// Remove 删除文件对应的全部片段
func (in *Ingester) Remove(ctx context.Context, file string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.store.DeleteDocument(ctx, filepath.Base(file))
}

// prune 删除向量库中有、目录中已没有的文件
func (in *Ingester) prune(ctx context.Context, files []string) (int, error) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[filepath.Base(f)] = true
	}

	removed := 0
	for _, name := range in.store.Documents() {
		if present[name] {
			continue
		}
		if err := in.store.DeleteDocument(ctx, name); err != nil {
			return removed, fmt.Errorf("remove stale %s: %w", name, err)
		}
		slog.Info("removed stale document", "file", name)
		removed++
	}
	return removed, nil
}

func (in *Ingester) ingest(ctx context.Context, file string) (pages, passages int, err error) {
	name := filepath.Base(file)

	extracted, err := in.extractor.ExtractPages(ctx, file)
	if err != nil {
		return 0, 0, fmt.Errorf("extract %s: %w", name, err)
	}
	built := BuildPassages(name, in.links.Lookup(name), extracted)
	if len(built) == 0 {
		slog.Warn("no text extracted", "file", name, "pages", len(extracted))
	}

	if err := in.store.DeleteDocument(ctx, name); err != nil {
		return 0, 0, err
	}

	for lo := 0; lo < len(built); lo += in.batchSize {
		hi := min(lo+in.batchSize, len(built))
		batch := built[lo:hi]

		embeddings := make([][]float32, 0, len(batch))
		for _, p := range batch {
			v, err := in.embedder.Embed(ctx, p.Content)
			if err != nil {
				return 0, 0, fmt.Errorf("embed %s page %d: %w", name, p.Page, err)
			}
			embeddings = append(embeddings, v)
		}
		if err := in.store.Upsert(ctx, batch, embeddings); err != nil {
			return 0, 0, fmt.Errorf("upsert %s batch at %d: %w", name, lo, err)
		}
		slog.Debug("batch stored", "file", name, "passages", fmt.Sprintf("%d/%d", hi, len(built)))
	}
	return len(extracted), len(built), nil
}

func (in *Ingester) loadProgress() map[string]bool {
	done := map[string]bool{}
	if in.progressFile == "" {
		return done
	}
	data, err := os.ReadFile(in.progressFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("read progress failed, starting over", "error", err)
		}
		return done
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		slog.Warn("corrupt progress file, starting over", "error", err)
		return done
	}
	for _, n := range names {
		done[n] = true
	}
	return done
}

func (in *Ingester) saveProgress(done map[string]bool) error {
	if in.progressFile == "" {
		return nil
	}
	names := make([]string, 0, len(done))
	for n := range done {
		names = append(names, n)
	}
	sort.Strings(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(in.progressFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(in.progressFile, data, 0644)
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isPDF(e.Name()) && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
