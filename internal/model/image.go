package model

import "time"

// Image はアップロード済み画像のメタデータを表す。
// 実体のバイト列はオブジェクトストアに格納され、file_keyで参照される。
// キーは時刻順にソート可能なUUIDv7のため、別インデックスなしで
// 作成時刻順に並ぶ。作成後は不変で、削除はバッチクリーンアップのみ。
type Image struct {
	Key        string // オブジェクトストアのキー（UUIDv7）
	OwnerID    *string
	UploadedAt time.Time
}
