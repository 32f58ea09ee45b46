// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（セッションストア）
	RedisURL string

	// 認証（Keycloak互換IdP）
	AuthServerURL    string // レルムURL（例: https://idp.example.com/realms/plantswap）
	AuthClientID     string
	AuthClientSecret string // PKCEパブリッククライアントの場合は空
	AuthAdminRole    string

	// Session
	SessionMaxAge  int // ログインセッションの有効期間（秒）
	PendingAuthTTL time.Duration

	// オブジェクトストア（S3互換）
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3ImagesBucket string
	S3UseSSL       bool

	// Pl@ntNet
	PlantNetAPIURL string
	PlantNetAPIKey string

	// アップロード
	UploadMaxBytes int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// クリーンアップ
	ImageRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	required := []struct {
		key  string
		dest *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_URL", &cfg.RedisURL},
		{"BASE_URL", &cfg.BaseURL},
		{"AUTH_SERVER_URL", &cfg.AuthServerURL},
		{"AUTH_CLIENT_ID", &cfg.AuthClientID},
		{"S3_ENDPOINT", &cfg.S3Endpoint},
		{"S3_ACCESS_KEY", &cfg.S3AccessKey},
		{"S3_SECRET_KEY", &cfg.S3SecretKey},
		{"S3_IMAGES_BUCKET", &cfg.S3ImagesBucket},
		{"PLANTNET_API_URL", &cfg.PlantNetAPIURL},
		{"PLANTNET_API_KEY", &cfg.PlantNetAPIKey},
	}
	for _, r := range required {
		*r.dest = os.Getenv(r.key)
		if *r.dest == "" {
			missing = append(missing, r.key)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthClientSecret = os.Getenv("AUTH_CLIENT_SECRET")
	cfg.AuthAdminRole = getEnvString("AUTH_ADMIN_ROLE", "plantswap-admin")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.PendingAuthTTL = getEnvDuration("PENDING_AUTH_TTL", 10*time.Minute)
	cfg.S3UseSSL = getEnvBool("S3_USE_SSL", false)
	cfg.UploadMaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", 10<<20)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 20)
	cfg.ImageRetentionDays = getEnvInt("IMAGE_RETENTION_DAYS", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// RedirectURL はOAuthコールバックのURLを返す。
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/auth/callback"
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
