package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxEntries 每个用户最多保留的问答条数，超出时淘汰最早的一条
const MaxEntries = 5

var ErrStorageUnavailable = errors.New("chat history storage unavailable")

// Entry 一条已持久化的问答记录，创建后不可修改
type Entry struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn 注入 prompt 的一轮问答
type Turn struct {
	Query  string
	Answer string
}

// Store 按用户划分的有界问答历史。
// Append 必须是原子的：计数、淘汰、插入作为一个整体执行。
type Store interface {
	Append(ctx context.Context, user, query, answer string) error
	FetchAll(ctx context.Context, user string) ([]Turn, error)
}

type options struct {
	maxEntries int
	now        func() time.Time
}

type Option func(*options)

// WithMaxEntries 覆盖每个用户的保留上限
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithClock 替换时间来源，测试里用来固定时间戳
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{maxEntries: MaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// excess 插入新记录前需要删除的最旧记录数
func (o options) excess(count int) int {
	if n := count - o.maxEntries + 1; n > 0 {
		return n
	}
	return 0
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
