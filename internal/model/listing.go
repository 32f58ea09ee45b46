package model

import "time"

// ListingType は出品の種別。
type ListingType string

const (
	// ListingTypeSelling は売り出品を表す。
	ListingTypeSelling ListingType = "selling"
	// ListingTypeBuying は買い募集を表す。
	ListingTypeBuying ListingType = "buying"
)

// Valid は既知の出品種別かどうかを返す。
func (t ListingType) Valid() bool {
	return t == ListingTypeSelling || t == ListingTypeBuying
}

// Listing は植物の出品を表す。
type Listing struct {
	ID              string
	Title           string
	Description     string
	CreatedAt       time.Time
	AuthorID        string
	Type            ListingType
	Thumbnail       string // imagesテーブルのfile_key
	Tradeable       bool
	IdentifiedPlant *string // 認識済みの場合のplants.id
}

// ListingUpdate は出品の部分更新を表す。
// nilのフィールドは更新しない。IDは常に設定されていなければならない。
type ListingUpdate struct {
	ID              string
	Title           *string
	Description     *string
	Type            *ListingType
	Thumbnail       *string
	Tradeable       *bool
	IdentifiedPlant *string
}
