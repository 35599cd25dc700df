package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// SQLiteStore users 表（与 chat_history 同库，见 storage.InitSchema）
type SQLiteStore struct {
	db   *sql.DB
	cost int
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, cost: bcrypt.DefaultCost}
}

func (s *SQLiteStore) Register(ctx context.Context, username, password string) error {
	if err := validate(username, password); err != nil {
		return err
	}
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password) VALUES (?, ?) ON CONFLICT(username) DO NOTHING`,
		username, hash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

// Authenticate 校验密码；旧哈希校验通过后升级为 bcrypt
func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password FROM users WHERE username = ?`, username).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}

	ok, legacy := checkPassword(stored, password)
	if ok && legacy {
		if hash, err := hashPassword(password, s.cost); err == nil {
			if _, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE username = ?`, hash, username); err != nil {
				slog.Warn("upgrade legacy password hash failed", "user", username, "error", err)
			}
		}
	}
	return ok, nil
}
