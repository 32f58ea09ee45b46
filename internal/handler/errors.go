package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/plantswap/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのJSONレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一フォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	resp := apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("エラーレスポンスの書き込みに失敗しました", slog.Any("error", err))
	}
}

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
// APIError以外のエラーは詳細を隠して500を返す。
func handleServiceError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	logger.Error("サービス層で予期しないエラーが発生しました", slog.Any("error", err))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はエラーコードをHTTPステータスコードに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidListing, model.ErrCodeImageNotFound, model.ErrCodeLoginSessionExpired:
		return http.StatusBadRequest
	case model.ErrCodeLoginRejected:
		return http.StatusUnauthorized
	case model.ErrCodeListingNotFound:
		return http.StatusNotFound
	case model.ErrCodeAuthorNoLocation:
		return http.StatusConflict
	case model.ErrCodeUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case model.ErrCodeRecognitionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.Any("error", err))
	}
}
