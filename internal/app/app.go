package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/plantswap/internal/auth"
	"github.com/hitoshi/plantswap/internal/config"
	"github.com/hitoshi/plantswap/internal/database"
	"github.com/hitoshi/plantswap/internal/handler"
	"github.com/hitoshi/plantswap/internal/listing"
	"github.com/hitoshi/plantswap/internal/logger"
	"github.com/hitoshi/plantswap/internal/metrics"
	"github.com/hitoshi/plantswap/internal/middleware"
	"github.com/hitoshi/plantswap/internal/recognition"
	"github.com/hitoshi/plantswap/internal/repository"
	"github.com/hitoshi/plantswap/internal/security"
	"github.com/hitoshi/plantswap/internal/session"
	"github.com/hitoshi/plantswap/internal/storage"
	"github.com/hitoshi/plantswap/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// jwksURL はレルムURLからJWKSエンドポイントを導出する。
func jwksURL(authServerURL string) string {
	return strings.TrimSuffix(authServerURL, "/") + "/protocol/openid-connect/certs"
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. セッションストア（Redis）
	sessionStore, err := session.NewRedisStore(
		cfg.RedisURL, cfg.PendingAuthTTL, time.Duration(cfg.SessionMaxAge)*time.Second,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer sessionStore.Close()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	credRepo := repository.NewPostgresCredentialRepo(db)
	imageRepo := repository.NewPostgresImageRepo(db)
	plantRepo := repository.NewPostgresPlantRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 設定された外部エンドポイントが内部ネットワークを指していないことを
	// 起動時に検証する
	if err := ssrfGuard.ValidateURL(cfg.AuthServerURL); err != nil {
		return fmt.Errorf("invalid AUTH_SERVER_URL: %w", err)
	}
	if err := ssrfGuard.ValidateURL(cfg.PlantNetAPIURL); err != nil {
		return fmt.Errorf("invalid PLANTNET_API_URL: %w", err)
	}

	// 5. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. 認証サービスの初期化
	// JWKSは起動時に1回だけ取得する。鍵のローテーション時はプロセスを
	// 再起動すること。
	ctx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	verifier, err := auth.NewVerifier(
		ctx, jwksURL(cfg.AuthServerURL), cfg.AuthClientID, cfg.AuthAdminRole,
		ssrfGuard.NewSafeClient(15*time.Second),
	)
	cancelInit()
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	provider := auth.NewKeycloakProvider(auth.KeycloakConfig{
		ServerURL:    cfg.AuthServerURL,
		ClientID:     cfg.AuthClientID,
		ClientSecret: cfg.AuthClientSecret,
		RedirectURL:  cfg.RedirectURL(),
	})
	authService := auth.NewService(provider, verifier, sessionStore, credRepo)

	// 7. 画像ストレージの初期化
	objectStore, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3ImagesBucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	imageService := storage.NewImageService(objectStore, imageRepo)

	// 8. ドメインサービスの初期化
	plantNet := recognition.NewPlantNetClient(
		ssrfGuard.NewSafeClient(30*time.Second), slog.Default(),
		cfg.PlantNetAPIURL, cfg.PlantNetAPIKey,
	)
	recognitionService := recognition.NewService(plantNet, plantRepo, collector)

	listingService := listing.NewService(listingRepo, userRepo, imageService, sanitizer)

	// 9. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.UploadRate = rate.Limit(float64(cfg.RateLimitUpload) / 60.0)
	rateLimiterCfg.UploadBurst = cfg.RateLimitUpload

	appLogger := slog.Default()
	router := handler.NewRouter(handler.RouterDeps{
		AuthHandler: handler.NewAuthHandler(authService, collector, handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		}, appLogger),
		PictureHandler: handler.NewPictureHandler(imageService, collector, handler.PictureHandlerConfig{
			MaxUploadBytes: cfg.UploadMaxBytes,
		}, appLogger),
		PlantHandler:   handler.NewPlantHandler(recognitionService, imageService, collector, appLogger),
		ListingHandler: handler.NewListingHandler(listingService, appLogger),
		UserHandler:    handler.NewUserHandler(userRepo, appLogger),

		Verifier:    verifier,
		Sessions:    sessionStore,
		Resolver:    authService,
		RateLimiter: middleware.NewRateLimiter(rateLimiterCfg),

		StatusRecorder: collector,
		Gatherer:       registry,

		HealthCheck: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := sessionStore.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            appLogger,
	})

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 未参照画像のクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. オブジェクトストア
	objectStore, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3ImagesBucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	// 3. クリーンアップジョブの初期化
	imageRepo := repository.NewPostgresImageRepo(db)
	cleanupJob := cleanup.NewCleanupJob(imageRepo, objectStore, nil, slog.Default())
	cleanupJob.RetentionDays = cfg.ImageRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("retention_days", cfg.ImageRetentionDays),
	)

	// 起動直後に1回実行し、以降は日次で実行する
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := cleanupJob.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
