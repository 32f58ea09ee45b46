// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/plantswap/internal/model"
)

// CredentialRepository はidentity IDと最終確認済みベアラートークンの
// 対応の永続化インターフェース。identity IDごとに常に1行だけ存在する。
type CredentialRepository interface {
	// Upsert はidentity IDの行を作成または上書きする（ON CONFLICT DO UPDATE）。
	Upsert(ctx context.Context, identityID, token string) error

	// FindToken は保存済みトークンを返す。見つからない場合は空文字列を返す。
	FindToken(ctx context.Context, identityID string) (string, error)
}

// ImageRepository は画像メタデータの永続化インターフェース。
// 画像の実体はオブジェクトストアが持ち、ここではキーと所有者のみを扱う。
type ImageRepository interface {
	// Create は画像メタデータを作成する。
	Create(ctx context.Context, image *model.Image) error

	// FindByKey は指定キーの画像メタデータを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Image, error)

	// ListUnreferencedBefore は指定時刻より前にアップロードされ、
	// どの出品からも参照されていない画像キーの一覧を返す。
	ListUnreferencedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// DeleteByKeys は指定キーの画像メタデータを一括削除する。
	DeleteByKeys(ctx context.Context, keys []string) error
}

// PlantRepository は種カタログの永続化インターフェース。
// powo_id（自然キー）の一意制約が同時挿入の安全性境界となる。
type PlantRepository interface {
	// FindByPowoID は自然キーで種レコードを検索する。見つからない場合はnilを返す。
	FindByPowoID(ctx context.Context, powoID string) (*model.Plant, error)

	// Insert は種レコードを挿入する。同一powo_idの行が既に存在する場合は
	// 何もしない（ON CONFLICT DO NOTHING）。呼び出し元は挿入後に
	// FindByPowoIDで確定したレコードを再取得すること。
	Insert(ctx context.Context, plant *model.Plant) error
}

// ListingRepository は出品データの永続化インターフェース。
type ListingRepository interface {
	// Create は出品を作成し、採番済みの出品を返す。
	Create(ctx context.Context, listing *model.Listing) (*model.Listing, error)

	// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// List は出品の一覧を新しい順に返す。limitで件数を制限する。
	List(ctx context.Context, limit int) ([]*model.Listing, error)

	// Update は出品を部分更新し、更新後の出品を返す。
	// nilのフィールドは変更しない。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, update *model.ListingUpdate) (*model.Listing, error)
}

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// UpsertLocation はユーザーの位置情報を作成または上書きする。
	// 行が存在しなければ新規作成する。
	UpsertLocation(ctx context.Context, userID string, loc model.Location) error

	// HasLocation はユーザーが位置情報を設定済みかどうかを返す。
	// 行が存在しない場合もfalseを返す。
	HasLocation(ctx context.Context, userID string) (bool, error)

	// FindLocation はユーザーの位置情報を取得する。未設定の場合はnilを返す。
	FindLocation(ctx context.Context, userID string) (*model.Location, error)
}
