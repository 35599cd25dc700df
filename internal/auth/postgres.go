package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	cost int
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, cost: bcrypt.DefaultCost}
}

func (s *PostgresStore) Register(ctx context.Context, username, password string) error {
	if err := validate(username, password); err != nil {
		return err
	}
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING`,
		username, hash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *PostgresStore) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var stored string
	err := s.pool.QueryRow(ctx, `SELECT password FROM users WHERE username = $1`, username).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}

	ok, legacy := checkPassword(stored, password)
	if ok && legacy {
		if hash, err := hashPassword(password, s.cost); err == nil {
			if _, err := s.pool.Exec(ctx, `UPDATE users SET password = $1 WHERE username = $2`, hash, username); err != nil {
				slog.Warn("upgrade legacy password hash failed", "user", username, "error", err)
			}
		}
	}
	return ok, nil
}
