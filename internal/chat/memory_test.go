package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T, opts ...Option) entryStore {
		s, err := NewMemoryStore("", opts...)
		require.NoError(t, err)
		return s
	})
}

func TestMemoryStore_Snapshot(t *testing.T) {
	runStoreTests(t, func(t *testing.T, opts ...Option) entryStore {
		s, err := NewMemoryStore(filepath.Join(t.TempDir(), "history.json"), opts...)
		require.NoError(t, err)
		return s
	})
}

func TestMemoryStore_RestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "sessions", "history.json")

	s, err := NewMemoryStore(file, WithClock(stepClock(epoch)))
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "alice", "q1", "a1"))
	require.NoError(t, s.Append(ctx, "alice", "q2", "a2"))

	restored, err := NewMemoryStore(file)
	require.NoError(t, err)

	turns, err := restored.FetchAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{"q1", "a1"}, {"q2", "a2"}}, turns)

	// id 不会在重启后重复
	require.NoError(t, restored.Append(ctx, "alice", "q3", "a3"))
	entries, err := restored.Entries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), entries[2].ID)
}

func TestMemoryStore_SaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "history.json")

	s, err := NewMemoryStore(file)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "alice", "q1", "a1"))

	// 用同名目录占住临时文件路径，让写入失败
	require.NoError(t, os.Mkdir(file+".tmp", 0755))

	err = s.Append(ctx, "alice", "q2", "a2")
	require.ErrorIs(t, err, ErrStorageUnavailable)

	turns, err := s.FetchAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{"q1", "a1"}}, turns)
}

func TestNewMemoryStore_CorruptSnapshot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0644))

	_, err := NewMemoryStore(file)
	assert.Error(t, err)
}
