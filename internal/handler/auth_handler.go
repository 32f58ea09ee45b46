// Package handler はHTTPリクエストの処理を担当する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/plantswap/internal/auth"
	"github.com/hitoshi/plantswap/internal/middleware"
	"github.com/hitoshi/plantswap/internal/model"
)

// AuthServiceInterface は認証サービスのインターフェース。
type AuthServiceInterface interface {
	// Start は認可フローを開始し、IdPの認可URLを返す。
	Start(ctx context.Context, sessionID, returnPath string) (string, error)
	// Callback は認可コードを検証・交換し、確立したアイデンティティと
	// ログイン開始時の戻り先パスを返す。
	Callback(ctx context.Context, sessionID, state, code string) (*model.Identity, string, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
}

// LoginMetricsRecorder はログイン結果のメトリクス記録インターフェース。
type LoginMetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// CookieDomain はセッションCookieのDomain属性。空の場合はホスト限定。
	CookieDomain string
	// CookieSecure はSecure属性を付与するかどうか。本番では必ずtrue。
	CookieSecure bool
	// SessionMaxAge はセッションCookieの有効期間（秒）。
	SessionMaxAge int
}

// AuthHandler は認証関連のHTTPリクエストを処理する。
type AuthHandler struct {
	service   AuthServiceInterface
	collector LoginMetricsRecorder
	config    AuthHandlerConfig
	logger    *slog.Logger
}

// NewAuthHandler は新しいAuthHandlerを生成する。
// collectorはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, collector LoginMetricsRecorder, config AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		collector: collector,
		config:    config,
		logger:    logger,
	}
}

// Login はログインフローを開始する。
// GET /auth/login?return=/path
//
// ブラウザ遷移の場合はIdPの認可URLへリダイレクトし、
// X-Requested-With: XMLHttpRequest 付きの場合はJSONでURLを返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.ensureSessionCookie(w, r)
	if err != nil {
		h.logger.Error("セッションIDの生成に失敗しました", slog.Any("error", err))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewLoginRejectedError())
		return
	}

	returnPath := sanitizeReturnPath(r.URL.Query().Get("return"))

	authURL, err := h.service.Start(r.Context(), sessionID, returnPath)
	if err != nil {
		h.logger.Error("認可フローの開始に失敗しました", slog.Any("error", err))
		handleServiceError(w, err, h.logger)
		return
	}

	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		writeJSONResponse(w, http.StatusOK, map[string]string{"redirect_url": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback はIdPからのリダイレクトを受けてログインを完了する。
// GET /auth/callback?state=...&code=...
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		h.recordLoginFailure("session_missing")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewLoginSessionExpiredError())
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	identity, returnPath, err := h.service.Callback(r.Context(), cookie.Value, state, code)
	if err != nil {
		h.handleCallbackError(w, err)
		return
	}

	h.recordLoginSuccess()
	h.logger.Info("ログインが完了しました",
		slog.String("user_id", identity.ID),
	)
	http.Redirect(w, r, sanitizeReturnPath(returnPath), http.StatusTemporaryRedirect)
}

// handleCallbackError はコールバック時の失敗を分類してレスポンスを返す。
func (h *AuthHandler) handleCallbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrSessionExpired):
		// 保留中の認可状態が無い。期限切れか、stateの再利用。
		h.recordLoginFailure("session_expired")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewLoginSessionExpiredError())
	case errors.Is(err, auth.ErrStateMismatch):
		h.recordLoginFailure("state_mismatch")
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
	case errors.Is(err, auth.ErrLoginRejected):
		h.recordLoginFailure("token_rejected")
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
	case errors.Is(err, auth.ErrUpstreamExchange):
		h.recordLoginFailure("exchange_failed")
		h.logger.Error("認可コードの交換に失敗しました", slog.Any("error", err))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewLoginRejectedError())
	default:
		h.recordLoginFailure("internal_error")
		handleServiceError(w, err, h.logger)
	}
}

// Logout はセッションを破棄してCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Error("セッションの破棄に失敗しました", slog.Any("error", err))
			handleServiceError(w, err, h.logger)
			return
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// meResponse は現在のユーザー情報のレスポンス。
type meResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Me は現在のユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
		return
	}

	writeJSONResponse(w, http.StatusOK, meResponse{
		ID:      identity.ID,
		Name:    identity.Name,
		Email:   identity.Email,
		IsAdmin: identity.Roles.IsAdmin(),
	})
}

// ensureSessionCookie は既存のセッションCookieを返すか、
// 無ければ新しいセッションIDを発行してCookieを設定する。
func (h *AuthHandler) ensureSessionCookie(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID, nil
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateSessionID は暗号論的乱数からセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// sanitizeReturnPath はログイン後の戻り先をサイト内パスに限定する。
// 外部URLへのオープンリダイレクトを防ぐため、"/"始まりの
// 相対パス以外はすべてルートに置き換える。
func sanitizeReturnPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return "/"
	}
	return path
}

func (h *AuthHandler) recordLoginSuccess() {
	if h.collector != nil {
		h.collector.RecordLoginSuccess()
	}
}

func (h *AuthHandler) recordLoginFailure(reason string) {
	if h.collector != nil {
		h.collector.RecordLoginFailure(reason)
	}
}
