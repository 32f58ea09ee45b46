package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/repository"
)

// ErrUnsupportedMediaType は許可されていないContent-Typeを表す。
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// allowedContentTypes はアップロードを許可するContent-Type。
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ImageService は画像のアップロードと取得を提供する。
// 実体はオブジェクトストアに、所有者メタデータはDBに保存する。
type ImageService struct {
	store  ObjectStore
	images repository.ImageRepository
}

// NewImageService はImageServiceを生成する。
func NewImageService(store ObjectStore, images repository.ImageRepository) *ImageService {
	return &ImageService{store: store, images: images}
}

// Store は画像を保存し、生成したキーを返す。
// Content-Typeの検査はすべてのI/Oより前に行う。
// キーはUUIDv7のため、ソートするとアップロード順になる。
func (s *ImageService) Store(ctx context.Context, ownerID *string, data []byte, contentType string) (string, error) {
	if !allowedContentTypes[contentType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate image key: %w", err)
	}
	key := id.String()

	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	image := &model.Image{
		Key:        key,
		OwnerID:    ownerID,
		UploadedAt: time.Now(),
	}
	if err := s.images.Create(ctx, image); err != nil {
		// オブジェクトは書き込み済みでメタデータだけが無い状態。
		// 補償トランザクションは行わず、後から検出・手動回収できるよう
		// 専用のログで残す。クリーンアップワーカーも孤児として報告する。
		slog.Error("image metadata write failed after object store put",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to record image metadata: %w", err)
	}

	return key, nil
}

// Fetch は画像を取得する。キーが存在しない場合は(nil, nil)を返し、
// ストレージ障害はエラーとして返す。
func (s *ImageService) Fetch(ctx context.Context, key string) (*Object, error) {
	obj, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	return obj, nil
}

// Exists は画像メタデータが登録済みかどうかを返す。
func (s *ImageService) Exists(ctx context.Context, key string) (bool, error) {
	image, err := s.images.FindByKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to look up image metadata: %w", err)
	}
	return image != nil, nil
}
