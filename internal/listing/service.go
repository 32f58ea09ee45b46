// Package listing は植物の出品のドメインロジックを提供する。
package listing

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/repository"
	"github.com/hitoshi/plantswap/internal/security"
)

// maxTitleLength はタイトルの最大文字数。
const maxTitleLength = 120

// maxDescriptionLength は説明文の最大文字数。
const maxDescriptionLength = 1023

// defaultListLimit は一覧取得のデフォルト件数。
const defaultListLimit = 50

// maxListLimit は一覧取得の最大件数。
const maxListLimit = 100

// ImageChecker は画像キーの存在確認のインターフェース。
// テスタビリティのためImageServiceを抽象化する。
type ImageChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// CreateInput は出品作成の入力。
// Picturesは検証にのみ使われ、サムネイル以外は保存されない。
type CreateInput struct {
	Title           string
	Description     string
	Type            model.ListingType
	Pictures        []string
	Thumbnail       string
	Tradeable       bool
	IdentifiedPlant *string
}

// UpdateInput は出品の部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Type        *model.ListingType
	Thumbnail   *string
	Tradeable   *bool
}

// Service は出品の作成・取得・更新のサービス層。
// 入力検証 → テキストのサニタイズ → 永続化のフローを統括する。
type Service struct {
	listings  repository.ListingRepository
	users     repository.UserRepository
	images    ImageChecker
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	listings repository.ListingRepository,
	users repository.UserRepository,
	images ImageChecker,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		listings:  listings,
		users:     users,
		images:    images,
		sanitizer: sanitizer,
	}
}

// Create は出品を作成する。
// フロー: 出品者の位置情報チェック → 入力検証 → テキスト整形 → 保存
func (s *Service) Create(ctx context.Context, authorID string, input *CreateInput) (*model.Listing, error) {
	// 1. 出品者が位置情報を設定済みであること
	hasLocation, err := s.users.HasLocation(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("出品者の確認に失敗しました: %w", err)
	}
	if !hasLocation {
		return nil, model.NewAuthorNoLocationError()
	}

	// 2. タイトル: タグ除去と空白の正規化
	title := normalizeTitle(s.sanitizer.StripTags(input.Title))
	if title == "" {
		return nil, model.NewInvalidListingError("タイトルが空です")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewInvalidListingError(fmt.Sprintf("タイトルは%d文字以内です", maxTitleLength))
	}

	// 3. 説明文のサニタイズ
	description := s.sanitizer.SanitizeDescription(input.Description)
	if len([]rune(description)) > maxDescriptionLength {
		return nil, model.NewInvalidListingError(fmt.Sprintf("説明文は%d文字以内です", maxDescriptionLength))
	}

	// 4. 出品種別
	if !input.Type.Valid() {
		return nil, model.NewInvalidListingError(fmt.Sprintf("不明な出品種別です: %s", input.Type))
	}

	// 5. 画像検証: 1枚以上あり、サムネイルがその中に含まれること
	if len(input.Pictures) == 0 {
		return nil, model.NewInvalidListingError("画像が1枚も添付されていません")
	}
	if !containsKey(input.Pictures, input.Thumbnail) {
		return nil, model.NewInvalidListingError("サムネイルが添付画像に含まれていません")
	}
	for _, key := range input.Pictures {
		exists, err := s.images.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("画像の確認に失敗しました: %w", err)
		}
		if !exists {
			return nil, model.NewImageNotFoundError(key)
		}
	}

	created, err := s.listings.Create(ctx, &model.Listing{
		Title:           title,
		Description:     description,
		AuthorID:        authorID,
		Type:            input.Type,
		Thumbnail:       input.Thumbnail,
		Tradeable:       input.Tradeable,
		IdentifiedPlant: input.IdentifiedPlant,
	})
	if err != nil {
		return nil, fmt.Errorf("出品の保存に失敗しました: %w", err)
	}

	return created, nil
}

// Get は出品を取得する。見つからない場合はnilを返す。
func (s *Service) Get(ctx context.Context, listingID string) (*model.Listing, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	return listing, nil
}

// List は出品の一覧を新しい順に返す。
// limitが0以下の場合はデフォルト件数、上限を超える場合は上限に丸める。
func (s *Service) List(ctx context.Context, limit int) ([]*model.Listing, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	listings, err := s.listings.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	return listings, nil
}

// Update は出品を部分更新する。
// 本人の出品のみ更新できる。指定されたフィールドには作成時と同じ検証を適用する。
func (s *Service) Update(ctx context.Context, actorID, listingID string, input *UpdateInput) (*model.Listing, error) {
	existing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}
	if existing.AuthorID != actorID {
		return nil, model.NewListingNotFoundError(listingID)
	}

	update := &model.ListingUpdate{ID: listingID}

	if input.Title != nil {
		title := normalizeTitle(s.sanitizer.StripTags(*input.Title))
		if title == "" {
			return nil, model.NewInvalidListingError("タイトルが空です")
		}
		if len([]rune(title)) > maxTitleLength {
			return nil, model.NewInvalidListingError(fmt.Sprintf("タイトルは%d文字以内です", maxTitleLength))
		}
		update.Title = &title
	}

	if input.Description != nil {
		description := s.sanitizer.SanitizeDescription(*input.Description)
		if len([]rune(description)) > maxDescriptionLength {
			return nil, model.NewInvalidListingError(fmt.Sprintf("説明文は%d文字以内です", maxDescriptionLength))
		}
		update.Description = &description
	}

	if input.Type != nil {
		if !input.Type.Valid() {
			return nil, model.NewInvalidListingError(fmt.Sprintf("不明な出品種別です: %s", *input.Type))
		}
		update.Type = input.Type
	}

	if input.Thumbnail != nil {
		exists, err := s.images.Exists(ctx, *input.Thumbnail)
		if err != nil {
			return nil, fmt.Errorf("画像の確認に失敗しました: %w", err)
		}
		if !exists {
			return nil, model.NewImageNotFoundError(*input.Thumbnail)
		}
		update.Thumbnail = input.Thumbnail
	}

	update.Tradeable = input.Tradeable

	updated, err := s.listings.Update(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}

	return updated, nil
}

// normalizeTitle は連続する空白を1つにまとめ、前後の空白を除去する。
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// containsKey はキー一覧にkeyが含まれるかを返す。
func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
