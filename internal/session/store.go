// Package session はブラウザ単位のサーバーサイドセッションを提供する。
//
// セッションはRedisに保持し、2種類の状態を扱う。
//   - 進行中ログインの一時情報（CSRF state・PKCE verifier・戻り先パス）。
//     read-onceのメールボックスとして扱い、TakePendingAuthで取得と同時に
//     削除する。これによりコールバックのリプレイは必ず失敗する。
//   - ログイン済みセッション（セッションID → identity ID）。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingAuthKeyPrefix = "plantswap:pending_auth:"
	identityKeyPrefix    = "plantswap:session:"
)

// PendingAuth は進行中ログイン1回分の一時情報を表す。
// ログイン開始時に作成され、コールバックで1回だけ読み取られる。
type PendingAuth struct {
	State        string `json:"state"`         // anti-CSRFトークン
	PKCEVerifier string `json:"pkce_verifier"` // PKCE code_verifier
	ReturnPath   string `json:"return_path"`   // ログイン後の戻り先（省略可）
}

// Store はセッションストアのインターフェース。
type Store interface {
	// PutPendingAuth は進行中ログインの一時情報をセッションに保存する。
	PutPendingAuth(ctx context.Context, sessionID string, pending *PendingAuth) error

	// TakePendingAuth は一時情報を取得し、同時にストアから削除する（read-once）。
	// 存在しない場合は(nil, nil)を返す。取得と削除は単一のGETDELで行われ、
	// 同一セッションに対して原子的である。
	TakePendingAuth(ctx context.Context, sessionID string) (*PendingAuth, error)

	// SetIdentity はセッションをログイン済みとしてidentity IDに紐付ける。
	SetIdentity(ctx context.Context, sessionID, identityID string) error

	// Identity はセッションに紐付くidentity IDを返す。未ログインの場合は空文字列。
	Identity(ctx context.Context, sessionID string) (string, error)

	// Delete はセッションのログイン状態を破棄する。
	Delete(ctx context.Context, sessionID string) error
}

// RedisStore はRedisを使用したStoreの実装。
type RedisStore struct {
	client         *redis.Client
	pendingAuthTTL time.Duration
	sessionTTL     time.Duration
}

// NewRedisStore はRedisStoreを生成する。
// redisURLは接続URL（例: "redis://localhost:6379/0"）を指定する。
func NewRedisStore(redisURL string, pendingAuthTTL, sessionTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisStore{
		client:         redis.NewClient(opts),
		pendingAuthTTL: pendingAuthTTL,
		sessionTTL:     sessionTTL,
	}, nil
}

// NewRedisStoreWithClient は既存のクライアントからRedisStoreを生成する。
// テスト用（miniredis等）。
func NewRedisStoreWithClient(client *redis.Client, pendingAuthTTL, sessionTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:         client,
		pendingAuthTTL: pendingAuthTTL,
		sessionTTL:     sessionTTL,
	}
}

// Ping はRedisへの接続を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close は接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// PutPendingAuth は進行中ログインの一時情報をセッションに保存する。
func (s *RedisStore) PutPendingAuth(ctx context.Context, sessionID string, pending *PendingAuth) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending auth: %w", err)
	}

	key := pendingAuthKeyPrefix + sessionID
	if err := s.client.Set(ctx, key, data, s.pendingAuthTTL).Err(); err != nil {
		return fmt.Errorf("failed to store pending auth: %w", err)
	}
	return nil
}

// TakePendingAuth は一時情報を取得し、同時にストアから削除する（read-once）。
func (s *RedisStore) TakePendingAuth(ctx context.Context, sessionID string) (*PendingAuth, error) {
	key := pendingAuthKeyPrefix + sessionID

	data, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take pending auth: %w", err)
	}

	var pending PendingAuth
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending auth: %w", err)
	}
	return &pending, nil
}

// SetIdentity はセッションをログイン済みとしてidentity IDに紐付ける。
func (s *RedisStore) SetIdentity(ctx context.Context, sessionID, identityID string) error {
	key := identityKeyPrefix + sessionID
	if err := s.client.Set(ctx, key, identityID, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store session identity: %w", err)
	}
	return nil
}

// Identity はセッションに紐付くidentity IDを返す。未ログインの場合は空文字列。
func (s *RedisStore) Identity(ctx context.Context, sessionID string) (string, error) {
	key := identityKeyPrefix + sessionID

	identityID, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session identity: %w", err)
	}
	return identityID, nil
}

// Delete はセッションのログイン状態を破棄する。
// 進行中ログインの一時情報が残っていれば合わせて削除する。
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	keys := []string{
		identityKeyPrefix + sessionID,
		pendingAuthKeyPrefix + sessionID,
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
