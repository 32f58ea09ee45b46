package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/plantswap/internal/middleware"
	"github.com/hitoshi/plantswap/internal/model"
)

// UserProfileInterface はユーザープロフィールの操作インターフェース。
type UserProfileInterface interface {
	// UpsertLocation はユーザーの位置情報を作成または上書きする。
	UpsertLocation(ctx context.Context, userID string, loc model.Location) error
	// FindLocation はユーザーの位置情報を取得する。未設定の場合はnilを返す。
	FindLocation(ctx context.Context, userID string) (*model.Location, error)
}

// UserHandler はユーザープロフィールのリクエストを処理する。
type UserHandler struct {
	users  UserProfileInterface
	logger *slog.Logger
}

// NewUserHandler は新しいUserHandlerを生成する。
func NewUserHandler(users UserProfileInterface, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// updateLocationRequest は位置情報更新リクエストのボディ。
type updateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UpdateLocation は自分の位置情報を設定する。
// PUT /api/users/me/location
//
// 保存前に座標を小数第1位へ丸めるため、正確な位置が
// サーバーに残ることはない。
func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
		return
	}

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidLocationError())
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidLocationError())
		return
	}

	loc := model.Location{Lat: req.Lat, Lon: req.Lon}.Round()
	if err := h.users.UpsertLocation(r.Context(), userID, loc); err != nil {
		h.logger.Error("位置情報の保存に失敗しました", slog.Any("error", err))
		handleServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetLocation は自分の位置情報を返す。未設定の場合は204を返す。
// GET /api/users/me/location
func (h *UserHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
		return
	}

	loc, err := h.users.FindLocation(r.Context(), userID)
	if err != nil {
		h.logger.Error("位置情報の取得に失敗しました", slog.Any("error", err))
		handleServiceError(w, err, h.logger)
		return
	}
	if loc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSONResponse(w, http.StatusOK, loc)
}

func invalidLocationError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_LOCATION",
		Message:  "位置情報の形式が不正です。",
		Category: "validation",
		Action:   "緯度は-90〜90、経度は-180〜180の範囲で指定してください。",
	}
}
