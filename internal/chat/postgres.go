package chat

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore 多实例共享的历史存储。
// 同一用户的写入由事务级 advisory lock 串行化。
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: newOptions(opts)}
}

func (s *PostgresStore) Append(ctx context.Context, user, query, answer string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, user); err != nil {
		return unavailable("lock user", err)
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_history WHERE username = $1`, user,
	).Scan(&count); err != nil {
		return unavailable("count entries", err)
	}

	if n := s.opts.excess(count); n > 0 {
		if _, err := tx.Exec(ctx, `
			DELETE FROM chat_history WHERE id IN (
				SELECT id FROM chat_history WHERE username = $1
				ORDER BY timestamp ASC, id ASC LIMIT $2
			)`, user, n); err != nil {
			return unavailable("evict oldest", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_history (username, query, answer, timestamp) VALUES ($1, $2, $3, $4)`,
		user, query, answer, s.opts.now(),
	); err != nil {
		return unavailable("insert entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *PostgresStore) FetchAll(ctx context.Context, user string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT query, answer FROM chat_history WHERE username = $1 ORDER BY timestamp ASC, id ASC`, user)
	if err != nil {
		return nil, unavailable("query history", err)
	}
	turns, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Turn])
	if err != nil {
		return nil, unavailable("collect history", err)
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return turns, nil
}

func (s *PostgresStore) Entries(ctx context.Context, user string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, query, answer, timestamp FROM chat_history
		WHERE username = $1 ORDER BY timestamp ASC, id ASC`, user)
	if err != nil {
		return nil, unavailable("query entries", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Entry])
	if err != nil {
		return nil, unavailable("collect entries", err)
	}
	return entries, nil
}
