package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/plantswap/internal/model"
)

// PostgresImageRepo はPostgreSQLを使用した画像メタデータリポジトリ。
type PostgresImageRepo struct {
	db *sql.DB
}

// NewPostgresImageRepo はPostgresImageRepoを生成する。
func NewPostgresImageRepo(db *sql.DB) *PostgresImageRepo {
	return &PostgresImageRepo{db: db}
}

// Create は画像メタデータを作成する。
func (r *PostgresImageRepo) Create(ctx context.Context, image *model.Image) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO images (file_key, uploaded_by_user, upload_date)
		 VALUES ($1, $2, $3)`,
		image.Key, image.OwnerID, image.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("画像メタデータの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByKey は指定キーの画像メタデータを取得する。見つからない場合はnilを返す。
func (r *PostgresImageRepo) FindByKey(ctx context.Context, key string) (*model.Image, error) {
	image := &model.Image{}
	var ownerID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT file_key, uploaded_by_user, upload_date
		 FROM images WHERE file_key = $1`,
		key,
	).Scan(&image.Key, &ownerID, &image.UploadedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("画像メタデータの取得に失敗しました: %w", err)
	}

	if ownerID.Valid {
		image.OwnerID = &ownerID.String
	}

	return image, nil
}

// ListUnreferencedBefore は指定時刻より前にアップロードされ、
// どの出品のサムネイルからも参照されていない画像キーの一覧を返す。
func (r *PostgresImageRepo) ListUnreferencedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.file_key
		 FROM images i
		 LEFT JOIN listings l ON l.thumbnail = i.file_key
		 WHERE i.upload_date < $1
		   AND l.id IS NULL
		 ORDER BY i.upload_date ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("未参照画像の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("未参照画像の読み取りに失敗しました: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未参照画像の走査に失敗しました: %w", err)
	}

	return keys, nil
}

// DeleteByKeys は指定キーの画像メタデータを一括削除する。
func (r *PostgresImageRepo) DeleteByKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM images WHERE file_key = ANY($1)`,
		pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("画像メタデータの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ImageRepository = (*PostgresImageRepo)(nil)
