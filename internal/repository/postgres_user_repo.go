package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/plantswap/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// UpsertLocation はユーザーの位置情報を作成または上書きする。
func (r *PostgresUserRepo) UpsertLocation(ctx context.Context, userID string, loc model.Location) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, latitude, longitude)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`,
		userID, loc.Lat, loc.Lon,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user location: %w", err)
	}
	return nil
}

// HasLocation はユーザーが位置情報を設定済みかどうかを返す。
func (r *PostgresUserRepo) HasLocation(ctx context.Context, userID string) (bool, error) {
	var has bool
	err := r.db.QueryRowContext(ctx,
		`SELECT latitude IS NOT NULL AND longitude IS NOT NULL
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&has)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user location: %w", err)
	}

	return has, nil
}

// FindLocation はユーザーの位置情報を取得する。未設定の場合はnilを返す。
func (r *PostgresUserRepo) FindLocation(ctx context.Context, userID string) (*model.Location, error) {
	var lat, lon sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT latitude, longitude FROM users WHERE id = $1`,
		userID,
	).Scan(&lat, &lon)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user location: %w", err)
	}

	if !lat.Valid || !lon.Valid {
		return nil, nil
	}

	return &model.Location{Lat: lat.Float64, Lon: lon.Float64}, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
