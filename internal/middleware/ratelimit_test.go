package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/plantswap/internal/model"
	"golang.org/x/time/rate"
)

// testRateLimiterConfig はテスト用の小さなレート制限設定を返す。
func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1), // 1 req/sec
		GeneralBurst:    3,
		UploadRate:      rate.Limit(1),
		UploadBurst:     2,
		CleanupInterval: time.Hour, // テスト中にクリーンアップが動かないように
	}
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	return req.WithContext(ContextWithIdentity(req.Context(), &model.Identity{ID: userID}))
}

// TestGeneralMiddleware_AllowsWithinBurst はバースト内のリクエストが通ることを検証する。
func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("user-1"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Result().StatusCode, http.StatusOK)
		}
	}
}

// TestGeneralMiddleware_BlocksOverBurst はバースト超過で429が返ることを検証する。
func TestGeneralMiddleware_BlocksOverBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("user-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されていない")
	}
}

// TestGeneralMiddleware_PerUserIsolation はユーザーごとに独立して制限されることを検証する。
func TestGeneralMiddleware_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-1のバーストを使い切る
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("user-1"))
	}

	// user-2は影響を受けない
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-2"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("user-2 status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestGeneralMiddleware_Unauthenticated は未認証リクエストに401が返ることを検証する。
func TestGeneralMiddleware_Unauthenticated(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestUploadMiddleware_IndependentOfGeneral はアップロードの制限が
// API全般の制限とは独立に動作することを検証する。
func TestUploadMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	uploadHandler := rl.UploadMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	// アップロードのバースト(2)を使い切る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		uploadHandler.ServeHTTP(w, authedRequest("user-1"))
		if w.Result().StatusCode != http.StatusCreated {
			t.Fatalf("upload %d: status = %d", i+1, w.Result().StatusCode)
		}
	}

	// アップロードは制限される
	w := httptest.NewRecorder()
	uploadHandler.ServeHTTP(w, authedRequest("user-1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("upload status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	// API全般は影響を受けない
	w = httptest.NewRecorder()
	generalHandler.ServeHTTP(w, authedRequest("user-1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("general status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestRateLimiter_Cleanup は期限切れエントリが削除されることを検証する。
func TestRateLimiter_Cleanup(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-cleanup"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval * 2）を超えるまで待つ
	deadline := time.Now().Add(time.Second)
	for rl.GeneralLimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("limiter count = %d, want 0 after cleanup", rl.GeneralLimiterCount())
	}
}

// TestDefaultRateLimiterConfig はデフォルト設定の値を検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	config := DefaultRateLimiterConfig()

	if config.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", config.GeneralBurst)
	}
	if config.UploadBurst != 20 {
		t.Errorf("UploadBurst = %d, want 20", config.UploadBurst)
	}
	if config.GeneralRate != rate.Limit(2.0) {
		t.Errorf("GeneralRate = %v, want 2.0", config.GeneralRate)
	}
}
