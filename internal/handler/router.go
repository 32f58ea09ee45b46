package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/plantswap/internal/metrics"
	"github.com/hitoshi/plantswap/internal/middleware"
)

// RouterDeps はルーターの依存関係。
type RouterDeps struct {
	AuthHandler    *AuthHandler
	PictureHandler *PictureHandler
	PlantHandler   *PlantHandler
	ListingHandler *ListingHandler
	UserHandler    *UserHandler

	Verifier    middleware.BearerVerifier
	Sessions    middleware.SessionReader
	Resolver    middleware.IdentityResolver
	RateLimiter *middleware.RateLimiter

	// StatusRecorder はレスポンスコードのメトリクス記録。nilの場合は記録しない。
	StatusRecorder middleware.HTTPStatusRecorder
	// Gatherer は/metricsエンドポイントのレジストリ。nilの場合はルートを生やさない。
	Gatherer prometheus.Gatherer

	// HealthCheck は依存サービスの疎通確認。nilの場合は常に正常とみなす。
	HealthCheck func(ctx context.Context) error

	CORSAllowedOrigin string
	Logger            *slog.Logger
}

// NewRouter はアプリケーションのHTTPルーターを構築する。
//
// ミドルウェアはリクエストID→リカバリー→ログ→メトリクス→CORS→
// セキュリティヘッダー→認証の順に適用する。認証ミドルウェアは
// アイデンティティを付与するだけで拒否はしないため、保護が必要な
// ルートは個別にRequireAuthを重ねる。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewAuthMiddleware(deps.Verifier, deps.Sessions, deps.Resolver))

	r.Get("/health", newHealthHandler(deps.HealthCheck, deps.Logger))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", deps.AuthHandler.Login)
		r.Get("/callback", deps.AuthHandler.Callback)
		r.Post("/logout", deps.AuthHandler.Logout)
		r.With(middleware.RequireAuth).Get("/me", deps.AuthHandler.Me)
	})

	// 閲覧系は認証不要
	r.Get("/api/listings", deps.ListingHandler.List)
	r.Get("/api/listings/{id}", deps.ListingHandler.Get)
	r.Get("/api/pictures/{key}", deps.PictureHandler.Get)

	// 書き込み系は認証とレート制限が必要
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/listings", deps.ListingHandler.Create)
		r.Patch("/api/listings/{id}", deps.ListingHandler.Update)
		r.Put("/api/users/me/location", deps.UserHandler.UpdateLocation)
		r.Get("/api/users/me/location", deps.UserHandler.GetLocation)

		// アップロードと種識別はオブジェクトストアや外部APIを叩くため、
		// より厳しい専用レート制限を重ねる。
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/pictures", deps.PictureHandler.Upload)
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/plants/recognize", deps.PlantHandler.Recognize)
	})

	return r
}

// newHealthHandler はヘルスチェックエンドポイントのハンドラーを生成する。
func newHealthHandler(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Error("ヘルスチェックに失敗しました", slog.Any("error", err))
				writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
