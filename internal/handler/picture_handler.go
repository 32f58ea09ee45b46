package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/plantswap/internal/middleware"
	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/storage"
)

// ImageStorageInterface は画像ストレージサービスのインターフェース。
type ImageStorageInterface interface {
	// Store は画像を保存し、採番されたキーを返す。
	Store(ctx context.Context, ownerID *string, data []byte, contentType string) (string, error)
	// Fetch は画像を取得する。キーが存在しない場合は(nil, nil)を返す。
	Fetch(ctx context.Context, key string) (*storage.Object, error)
}

// UploadMetricsRecorder は画像アップロードのメトリクス記録インターフェース。
type UploadMetricsRecorder interface {
	RecordImageUpload()
}

// PictureHandlerConfig は画像ハンドラーの設定。
type PictureHandlerConfig struct {
	// MaxUploadBytes はアップロードの最大サイズ（バイト）。
	MaxUploadBytes int64
}

// PictureHandler は画像のアップロードと配信を処理する。
type PictureHandler struct {
	images    ImageStorageInterface
	collector UploadMetricsRecorder
	config    PictureHandlerConfig
	logger    *slog.Logger
}

// NewPictureHandler は新しいPictureHandlerを生成する。
// collectorはnilでもよい。
func NewPictureHandler(images ImageStorageInterface, collector UploadMetricsRecorder, config PictureHandlerConfig, logger *slog.Logger) *PictureHandler {
	return &PictureHandler{
		images:    images,
		collector: collector,
		config:    config,
		logger:    logger,
	}
}

// uploadPictureResponse は画像アップロードのレスポンス。
type uploadPictureResponse struct {
	ID string `json:"id"`
}

// Upload は画像をアップロードする。
// POST /api/pictures （multipart/form-data、フィールド名 picture）
func (h *PictureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)

	file, _, err := r.FormFile("picture")
	if err != nil {
		if isBodyTooLarge(err) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(h.config.MaxUploadBytes))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "multipart/form-dataのpictureフィールドが必要です。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(h.config.MaxUploadBytes))
			return
		}
		h.logger.Error("アップロードの読み込みに失敗しました", slog.Any("error", err))
		handleServiceError(w, err, h.logger)
		return
	}

	// クライアント申告のContent-Typeは信用せず、先頭バイトから判定する。
	contentType := http.DetectContentType(data)

	key, err := h.images.Store(r.Context(), &userID, data, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedMediaType) {
			writeAPIErrorResponse(w, http.StatusUnsupportedMediaType, model.NewUnsupportedMediaTypeError(contentType))
			return
		}
		h.logger.Error("画像の保存に失敗しました", slog.Any("error", err))
		handleServiceError(w, err, h.logger)
		return
	}

	if h.collector != nil {
		h.collector.RecordImageUpload()
	}

	writeJSONResponse(w, http.StatusCreated, uploadPictureResponse{ID: key})
}

// Get は画像を配信する。
// GET /api/pictures/{key}
//
// キーはUUIDv7で内容は不変のため、長期キャッシュを許可する。
func (h *PictureHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	object, err := h.images.Fetch(r.Context(), key)
	if err != nil {
		h.logger.Error("画像の取得に失敗しました",
			slog.String("key", key),
			slog.Any("error", err),
		)
		handleServiceError(w, err, h.logger)
		return
	}
	if object == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewImageNotFoundError(key))
		return
	}

	w.Header().Set("Content-Type", object.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(object.Data); err != nil {
		h.logger.Warn("画像レスポンスの書き込みに失敗しました",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// isBodyTooLarge はMaxBytesReaderによるサイズ超過かどうかを判定する。
// multipartパース経由ではラップされずに文字列化されることがあるため、
// メッセージでの判定も併用する。
func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}
