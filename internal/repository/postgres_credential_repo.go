package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresCredentialRepo はPostgreSQLを使用した認証情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Upsert はidentity IDの行を作成または上書きする。
func (r *PostgresCredentialRepo) Upsert(ctx context.Context, identityID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, access_token)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET access_token = EXCLUDED.access_token`,
		identityID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// FindToken は保存済みトークンを返す。見つからない場合は空文字列を返す。
func (r *PostgresCredentialRepo) FindToken(ctx context.Context, identityID string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token FROM user_sessions WHERE id = $1`,
		identityID,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find credential: %w", err)
	}

	return token, nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
