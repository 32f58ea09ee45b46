package middleware

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
)

// requestIDHeader はリクエストIDを返すレスポンスヘッダー。
const requestIDHeader = "X-Request-Id"

// requestIDContextKey はリクエストコンテキストにリクエストIDを格納するためのキー。
var requestIDContextKey = contextKey("request_id")

// NewRequestIDMiddleware はリクエストごとに一意なIDを採番し、
// コンテキストとレスポンスヘッダーに設定するミドルウェアを返す。
// IDはULIDのため時系列順にソート可能で、ログの突き合わせに使える。
// クライアントから送られたX-Request-Idは信用せず常に採番し直す。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := ulid.Make().String()

			w.Header().Set(requestIDHeader, requestID)
			ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext はリクエストコンテキストからリクエストIDを取得する。
// 設定されていない場合は空文字列を返す。
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
