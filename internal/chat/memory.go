package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type snapshot struct {
	NextID int64              `json:"next_id"`
	Users  map[string][]Entry `json:"users"`
}

// MemoryStore 进程内历史存储，可选地以 JSON 快照落盘
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string][]Entry
	nextID int64
	file   string
	opts   options
}

// NewMemoryStore 创建内存存储；file 非空时从快照恢复，并在每次写入后保存
func NewMemoryStore(file string, opts ...Option) (*MemoryStore, error) {
	m := &MemoryStore{
		users: make(map[string][]Entry),
		file:  file,
		opts:  newOptions(opts),
	}
	if file == "" {
		return m, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	// 尝试从文件恢复
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		var s snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot %s: %w", file, err)
		}
		if s.Users != nil {
			m.users = s.Users
		}
		m.nextID = s.NextID
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read snapshot %s: %w", file, err)
	}
	return m, nil
}

func (m *MemoryStore) Append(ctx context.Context, user, query, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.users[user]
	next := make([]Entry, 0, m.opts.maxEntries)
	next = append(next, cur[m.opts.excess(len(cur)):]...)
	next = append(next, Entry{
		ID:        m.nextID + 1,
		User:      user,
		Query:     query,
		Answer:    answer,
		Timestamp: m.opts.now(),
	})

	// 先落盘再提交到内存，失败时状态不变
	if m.file != "" {
		if err := m.save(user, next, m.nextID+1); err != nil {
			return unavailable("save snapshot", err)
		}
	}
	m.users[user] = next
	m.nextID++
	return nil
}

func (m *MemoryStore) FetchAll(ctx context.Context, user string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.users[user]
	if len(entries) == 0 {
		return nil, nil
	}
	turns := make([]Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, Turn{Query: e.Query, Answer: e.Answer})
	}
	return turns, nil
}

// Entries 返回用户的完整记录（含 id 和时间戳）
func (m *MemoryStore) Entries(ctx context.Context, user string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Entry(nil), m.users[user]...), nil
}

// save 写入包含 pending 变更的快照，调用方需持有锁
func (m *MemoryStore) save(user string, pending []Entry, nextID int64) error {
	users := make(map[string][]Entry, len(m.users)+1)
	for u, es := range m.users {
		users[u] = es
	}
	users[user] = pending

	data, err := json.MarshalIndent(snapshot{NextID: nextID, Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := m.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, m.file)
}
