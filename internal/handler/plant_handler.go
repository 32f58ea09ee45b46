package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/recognition"
)

// maxRecognitionImages は1回の認識リクエストに含められる画像数の上限。
const maxRecognitionImages = 5

// RecognitionServiceInterface は種識別サービスのインターフェース。
type RecognitionServiceInterface interface {
	// Analyze は画像群を認識にかけ、種カタログに照合済みの候補を返す。
	Analyze(ctx context.Context, images []recognition.Image, location *model.Location) ([]recognition.Match, error)
}

// RecognitionMetricsRecorder は認識リクエストのメトリクス記録インターフェース。
type RecognitionMetricsRecorder interface {
	RecordRecognitionRequest()
	RecordRecognitionLatency(d time.Duration)
}

// PlantHandler は植物の種識別リクエストを処理する。
type PlantHandler struct {
	recognizer RecognitionServiceInterface
	images     ImageStorageInterface
	collector  RecognitionMetricsRecorder
	logger     *slog.Logger
}

// NewPlantHandler は新しいPlantHandlerを生成する。
// collectorはnilでもよい。
func NewPlantHandler(recognizer RecognitionServiceInterface, images ImageStorageInterface, collector RecognitionMetricsRecorder, logger *slog.Logger) *PlantHandler {
	return &PlantHandler{
		recognizer: recognizer,
		images:     images,
		collector:  collector,
		logger:     logger,
	}
}

// recognizeRequest は種識別リクエストのボディ。
// imagesにはアップロード済み画像のキーを指定する。
type recognizeRequest struct {
	Images   []string        `json:"images"`
	Location *model.Location `json:"location,omitempty"`
}

// recognizeResponse は種識別のレスポンス。
type recognizeResponse struct {
	Matches []recognition.Match `json:"matches"`
}

// Recognize はアップロード済み画像の種識別を行う。
// POST /api/plants/recognize
func (h *PlantHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの形式が不正です。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	if len(req.Images) == 0 || len(req.Images) > maxRecognitionImages {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "画像キーは1〜5件で指定してください。",
			Category: "validation",
			Action:   "画像の指定数を確認してください。",
		})
		return
	}

	images := make([]recognition.Image, 0, len(req.Images))
	for _, key := range req.Images {
		object, err := h.images.Fetch(r.Context(), key)
		if err != nil {
			h.logger.Error("認識対象画像の取得に失敗しました",
				slog.String("key", key),
				slog.Any("error", err),
			)
			handleServiceError(w, err, h.logger)
			return
		}
		if object == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewImageNotFoundError(key))
			return
		}
		images = append(images, recognition.Image{
			Data:     object.Data,
			Filename: key,
		})
	}

	h.recordRequest()
	start := time.Now()

	matches, err := h.recognizer.Analyze(r.Context(), images, req.Location)
	h.recordLatency(time.Since(start))
	if err != nil {
		h.logger.Error("種識別に失敗しました", slog.Any("error", err))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewRecognitionFailedError())
		return
	}

	writeJSONResponse(w, http.StatusOK, recognizeResponse{Matches: matches})
}

func (h *PlantHandler) recordRequest() {
	if h.collector != nil {
		h.collector.RecordRecognitionRequest()
	}
}

func (h *PlantHandler) recordLatency(d time.Duration) {
	if h.collector != nil {
		h.collector.RecordRecognitionLatency(d)
	}
}
