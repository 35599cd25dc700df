package chat

import (
	"context"
	"database/sql"
	"time"
)

// SQLiteStore 基于 chat_history 表的历史存储。
// 数据库需以 _txlock=immediate 打开（见 storage.OpenSQLite），
// 同进程内另有按用户的互斥锁，避免无谓的 busy 等待。
type SQLiteStore struct {
	db    *sql.DB
	locks userLocks
	opts  options
}

func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, opts: newOptions(opts)}
}

func (s *SQLiteStore) Append(ctx context.Context, user, query, answer string) error {
	unlock := s.locks.lock(user)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_history WHERE username = ?`, user,
	).Scan(&count); err != nil {
		return unavailable("count entries", err)
	}

	if n := s.opts.excess(count); n > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chat_history WHERE id IN (
				SELECT id FROM chat_history WHERE username = ?
				ORDER BY timestamp ASC, id ASC LIMIT ?
			)`, user, n); err != nil {
			return unavailable("evict oldest", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_history (username, query, answer, timestamp) VALUES (?, ?, ?, ?)`,
		user, query, answer, s.opts.now().UnixNano(),
	); err != nil {
		return unavailable("insert entry", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *SQLiteStore) FetchAll(ctx context.Context, user string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, answer FROM chat_history WHERE username = ? ORDER BY timestamp ASC, id ASC`, user)
	if err != nil {
		return nil, unavailable("query history", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Query, &t.Answer); err != nil {
			return nil, unavailable("scan history", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate history", err)
	}
	return turns, nil
}

func (s *SQLiteStore) Entries(ctx context.Context, user string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, query, answer, timestamp FROM chat_history
		WHERE username = ? ORDER BY timestamp ASC, id ASC`, user)
	if err != nil {
		return nil, unavailable("query entries", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.User, &e.Query, &e.Answer, &ts); err != nil {
			return nil, unavailable("scan entry", err)
		}
		e.Timestamp = time.Unix(0, ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate entries", err)
	}
	return entries, nil
}
