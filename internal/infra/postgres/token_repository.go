package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"pdf2html/internal/tokens"
)

const (
	tokensDDL = `CREATE TABLE IF NOT EXISTS tokens (
		token TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 60,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		comment TEXT
	);`
	tokensIndexDDL = `CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`
	selectTokens   = `SELECT token, rate_limit FROM tokens;`
)

// EnsureSchema creates the tokens table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, tokensDDL); err != nil {
		return fmt.Errorf("create tokens table failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, tokensIndexDDL); err != nil {
		return fmt.Errorf("create tokens index failed: %w", err)
	}
	return nil
}

// TokenRepository reads API tokens from Postgres.
type TokenRepository struct {
	DB  *DB
	DSN string
}

// NewTokenRepository binds mgr to dsn.
func NewTokenRepository(mgr *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: mgr, DSN: dsn}
}

// LoadTokens implements tokens.Repository.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectTokens)
	if err != nil {
		return nil, fmt.Errorf("query tokens failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var token string
		var limit int
		if err := rows.Scan(&token, &limit); err != nil {
			return nil, fmt.Errorf("scan token failed: %w", err)
		}
		out[token] = tokens.Entry{RateLimit: limit}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
