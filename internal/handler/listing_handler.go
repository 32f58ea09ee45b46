package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/plantswap/internal/listing"
	"github.com/hitoshi/plantswap/internal/middleware"
	"github.com/hitoshi/plantswap/internal/model"
)

// ListingServiceInterface は出品サービスのインターフェース。
type ListingServiceInterface interface {
	// Create は出品を検証して作成する。
	Create(ctx context.Context, authorID string, input *listing.CreateInput) (*model.Listing, error)
	// Get は出品を取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, listingID string) (*model.Listing, error)
	// List は出品の一覧を新しい順に返す。
	List(ctx context.Context, limit int) ([]*model.Listing, error)
	// Update は本人の出品を部分更新する。
	Update(ctx context.Context, actorID, listingID string, input *listing.UpdateInput) (*model.Listing, error)
}

// ListingHandler は出品のCRUDリクエストを処理する。
type ListingHandler struct {
	service ListingServiceInterface
	logger  *slog.Logger
}

// NewListingHandler は新しいListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{service: service, logger: logger}
}

// createListingRequest は出品作成リクエストのボディ。
type createListingRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Type            string   `json:"type"`
	Pictures        []string `json:"pictures"`
	Thumbnail       string   `json:"thumbnail"`
	Tradeable       bool     `json:"tradeable"`
	IdentifiedPlant *string  `json:"identified_plant,omitempty"`
}

// updateListingRequest は出品更新リクエストのボディ。
// 省略したフィールドは変更されない。
type updateListingRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Type        *string `json:"type,omitempty"`
	Thumbnail   *string `json:"thumbnail,omitempty"`
	Tradeable   *bool   `json:"tradeable,omitempty"`
}

// listingResponse は出品1件のレスポンス。
type listingResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	AuthorID        string    `json:"author_id"`
	Type            string    `json:"type"`
	Thumbnail       string    `json:"thumbnail"`
	Tradeable       bool      `json:"tradeable"`
	IdentifiedPlant *string   `json:"identified_plant,omitempty"`
}

// listListingsResponse は出品一覧のレスポンス。
type listListingsResponse struct {
	Listings []listingResponse `json:"listings"`
}

func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:              l.ID,
		Title:           l.Title,
		Description:     l.Description,
		CreatedAt:       l.CreatedAt,
		AuthorID:        l.AuthorID,
		Type:            string(l.Type),
		Thumbnail:       l.Thumbnail,
		Tradeable:       l.Tradeable,
		IdentifiedPlant: l.IdentifiedPlant,
	}
}

// Create は出品を作成する。
// POST /api/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
		return
	}

	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidListingError("リクエストボディの形式が不正です"))
		return
	}

	input := &listing.CreateInput{
		Title:           req.Title,
		Description:     req.Description,
		Type:            model.ListingType(req.Type),
		Pictures:        req.Pictures,
		Thumbnail:       req.Thumbnail,
		Tradeable:       req.Tradeable,
		IdentifiedPlant: req.IdentifiedPlant,
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("出品を作成しました",
		slog.String("listing_id", created.ID),
		slog.String("user_id", userID),
	)
	writeJSONResponse(w, http.StatusCreated, toListingResponse(created))
}

// Get は出品を1件取得する。
// GET /api/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	if found == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListingNotFoundError(listingID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingResponse(found))
}

// List は出品の一覧を新しい順に返す。
// GET /api/listings?limit=50
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidListingError("limitは整数で指定してください"))
			return
		}
		limit = parsed
	}

	listings, err := h.service.List(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	resp := listListingsResponse{Listings: make([]listingResponse, 0, len(listings))}
	for _, l := range listings {
		resp.Listings = append(resp.Listings, toListingResponse(l))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// Update は本人の出品を部分更新する。
// PATCH /api/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
		return
	}

	listingID := chi.URLParam(r, "id")

	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidListingError("リクエストボディの形式が不正です"))
		return
	}

	input := &listing.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		Tradeable:   req.Tradeable,
	}
	if req.Type != nil {
		t := model.ListingType(*req.Type)
		input.Type = &t
	}

	updated, err := h.service.Update(r.Context(), userID, listingID, input)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingResponse(updated))
}
