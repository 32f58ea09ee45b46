// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/plantswap/internal/model"
)

// SessionCookieName は匿名セッションIDを保持するCookieの名前。
const SessionCookieName = "plantswap_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにIdentityを格納するためのキー。
var identityContextKey = contextKey("identity")

// BearerVerifier はAuthorizationヘッダーのベアラートークンを検証する
// インターフェース。auth.Verifierの部分集合として定義する。
type BearerVerifier interface {
	Verify(tokenText string) (*model.Identity, error)
}

// SessionReader はセッションIDからidentity IDを引くインターフェース。
// session.Storeの部分集合として定義する。
type SessionReader interface {
	Identity(ctx context.Context, sessionID string) (string, error)
}

// IdentityResolver は保存済みトークンからIdentityを再解決する
// インターフェース。auth.Serviceの部分集合として定義する。
type IdentityResolver interface {
	Resolve(ctx context.Context, identityID string) (*model.Identity, error)
}

// NewAuthMiddleware はリクエストから認証済みIdentityを導出し、
// コンテキストに注入するミドルウェアを返す。
// 2つの経路を順に試す:
//  1. Authorization: Bearer ヘッダーのトークン検証
//  2. セッションCookie → identity ID → 保存済みトークンの再検証
//
// どちらも成立しない場合はIdentityなしで後続に渡す。
// 認証を必須にするのはRequireAuthの責務。
// トークンそのものは検証の成否によらずログに出さない。
func NewAuthMiddleware(verifier BearerVerifier, sessions SessionReader, resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := authenticate(r, verifier, sessions, resolver)
			if identity != nil {
				ctx := context.WithValue(r.Context(), identityContextKey, identity)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate はリクエストからIdentityを導出する。導出できない場合はnil。
func authenticate(r *http.Request, verifier BearerVerifier, sessions SessionReader, resolver IdentityResolver) *model.Identity {
	// 1. ベアラートークン
	if token := bearerToken(r); token != "" {
		identity, err := verifier.Verify(token)
		if err != nil {
			slog.Debug("bearer token rejected",
				slog.String("path", r.URL.Path),
				slog.String("reason", err.Error()),
			)
			return nil
		}
		return identity
	}

	// 2. セッションCookie
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	identityID, err := sessions.Identity(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to read session", slog.String("error", err.Error()))
		return nil
	}
	if identityID == "" {
		return nil
	}

	// セッションの生存とは独立にトークンの期限切れがありうるため、
	// 保存済みトークンを毎回検証し直す。
	identity, err := resolver.Resolve(r.Context(), identityID)
	if err != nil {
		slog.Error("failed to resolve identity",
			slog.String("identity_id", identityID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return identity
}

// bearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
// ヘッダーがない、または形式が異なる場合は空文字列を返す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// RequireAuth は認証済みIdentityを必須にするミドルウェア。
// NewAuthMiddlewareの後段に配置すること。未認証リクエストには
// 401 Unauthorizedを返す。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin は管理者権限を必須にするミドルウェア。
// 未認証は401、認証済みだが権限がない場合は403を返す。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRejectedError())
			return
		}
		if !identity.Roles.IsAdmin() {
			WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
				Code:     "FORBIDDEN",
				Message:  "この操作には管理者権限が必要です。",
				Category: "auth",
				Action:   "管理者アカウントでログインしてください。",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext はリクエストコンテキストからIdentityを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	return identity, ok
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.ID == "" {
		return "", fmt.Errorf("identity not found in context")
	}
	return identity.ID, nil
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
