package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

// chromem 文档 metadata 中的引用字段
const (
	MetaDocument = "document"
	MetaPage     = "page"
	MetaLink     = "link"
)

// Passage 可检索的文档片段（一页 PDF）及其引用信息
type Passage struct {
	ID         string
	Content    string
	Document   string
	Page       int
	Link       string
	Similarity float32
}

// documentsFile 已入库文件名清单，chromem 会跳过持久化目录根下的文件
const documentsFile = "documents.json"

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu        sync.Mutex
	documents map[string]bool
	manifest  string
}

// NewStore 创建或加载向量存储；vectorsDir 为空时只在内存中
func NewStore(vectorsDir, collection string, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	db := chromem.NewDB()
	if vectorsDir != "" {
		var err error
		db, err = chromem.NewPersistentDB(vectorsDir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("get/create collection: %w", err)
	}

	s := &Store{db: db, collection: col, documents: map[string]bool{}}
	if vectorsDir != "" {
		s.manifest = filepath.Join(vectorsDir, documentsFile)
		if err := s.loadDocuments(); err != nil {
			return nil, err
		}
	}

	slog.Info("vector store loaded", "dir", vectorsDir, "collection", collection, "count", col.Count(), "documents", len(s.documents))
	return s, nil
}

// Search 按余弦相似度降序返回最近的 topK 个片段
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]Passage, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vectors: empty embedding")
	}

	k := topK
	if n := s.collection.Count(); k > n {
		k = n
	}
	if k <= 0 {
		slog.Debug("no vectors in store, skipping search")
		return nil, nil
	}

	docs, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	passages := make([]Passage, 0, len(docs))
	for _, d := range docs {
		passages = append(passages, passageFromResult(d))
	}
	slog.Debug("vector search done", "top_k", topK, "count", len(passages))
	return passages, nil
}

// Upsert 写入已带 embedding 的片段，同 ID 覆盖
func (s *Store) Upsert(ctx context.Context, passages []Passage, embeddings [][]float32) error {
	if len(passages) != len(embeddings) {
		return fmt.Errorf("passages and embeddings length mismatch: %d != %d", len(passages), len(embeddings))
	}

	docs := make([]chromem.Document, 0, len(passages))
	for i, p := range passages {
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Content:   p.Content,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				MetaDocument: p.Document,
				MetaPage:     strconv.Itoa(p.Page),
				MetaLink:     p.Link,
			},
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := false
	for _, p := range passages {
		if p.Document != "" && !s.documents[p.Document] {
			s.documents[p.Document] = true
			added = true
		}
	}
	if added {
		return s.saveDocuments()
	}
	return nil
}

// DeleteDocument 删除某个文件的所有片段，重新入库前调用
func (s *Store) DeleteDocument(ctx context.Context, document string) error {
	if s.collection.Count() > 0 {
		if err := s.collection.Delete(ctx, map[string]string{MetaDocument: document}, nil); err != nil {
			return fmt.Errorf("delete document %s: %w", document, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.documents[document] {
		return nil
	}
	delete(s.documents, document)
	return s.saveDocuments()
}

// Documents 返回已入库的文件名（升序）
func (s *Store) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.documents))
	for name := range s.documents {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Store) loadDocuments() error {
	data, err := os.ReadFile(s.manifest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read document manifest: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("parse document manifest: %w", err)
	}
	for _, name := range names {
		s.documents[name] = true
	}
	return nil
}

// saveDocuments 调用方持有 mu
func (s *Store) saveDocuments() error {
	if s.manifest == "" {
		return nil
	}
	names := make([]string, 0, len(s.documents))
	for name := range s.documents {
		names = append(names, name)
	}
	slices.Sort(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.manifest, data, 0644); err != nil {
		return fmt.Errorf("write document manifest: %w", err)
	}
	return nil
}

// Count 返回片段数量
func (s *Store) Count() int {
	return s.collection.Count()
}

func passageFromResult(r chromem.Result) Passage {
	page, _ := strconv.Atoi(r.Metadata[MetaPage])
	return Passage{
		ID:         r.ID,
		Content:    r.Content,
		Document:   r.Metadata[MetaDocument],
		Page:       page,
		Link:       r.Metadata[MetaLink],
		Similarity: r.Similarity,
	}
}
