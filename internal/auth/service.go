package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/repository"
	"github.com/hitoshi/plantswap/internal/session"
)

// ログインフローの失敗分類。ハンドラーがHTTPステータスに
// 変換できるようsentinelとして公開する。
var (
	// ErrSessionExpired はコールバック時に保留中の認可状態が
	// 見つからないことを表す。リプレイされたコールバックも
	// 読み取り済みのためここに分類される。
	ErrSessionExpired = errors.New("pending authorization state missing or expired")
	// ErrStateMismatch はstateパラメータがCSRFトークンと一致しないことを表す。
	ErrStateMismatch = errors.New("state parameter mismatch")
	// ErrUpstreamExchange はIdPとのコード交換に失敗したことを表す。
	ErrUpstreamExchange = errors.New("authorization code exchange failed")
	// ErrLoginRejected は交換で得たトークンが検証を通らなかったことを表す。
	ErrLoginRejected = errors.New("bearer token rejected")
)

// TokenVerifier はベアラートークンからIdentityを導出するインターフェース。
type TokenVerifier interface {
	Verify(tokenText string) (*model.Identity, error)
}

// Service はOAuth認可コード+PKCEフローと認証済みセッションの
// 解決を提供する。保留中の認可状態はセッションストアが、
// identity IDとトークンの対応はCredentialRepositoryが保持する。
type Service struct {
	provider    Provider
	verifier    TokenVerifier
	sessions    session.Store
	credentials repository.CredentialRepository
}

// NewService はServiceを生成する。
func NewService(
	provider Provider,
	verifier TokenVerifier,
	sessions session.Store,
	credentials repository.CredentialRepository,
) *Service {
	return &Service{
		provider:    provider,
		verifier:    verifier,
		sessions:    sessions,
		credentials: credentials,
	}
}

// Start はログイン試行を開始し、IdPの認可URLを返す。
// CSRFトークンとPKCE verifierを生成してセッションに退避する。
// returnPathはログイン成功後のリダイレクト先（空可）。
func (s *Service) Start(ctx context.Context, sessionID, returnPath string) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	pkceVerifier := oauth2.GenerateVerifier()

	pending := &session.PendingAuth{
		State:        state,
		PKCEVerifier: pkceVerifier,
		ReturnPath:   returnPath,
	}
	if err := s.sessions.PutPendingAuth(ctx, sessionID, pending); err != nil {
		return "", fmt.Errorf("failed to stash pending authorization: %w", err)
	}

	slog.Info("login started", slog.String("session_id", sessionID))

	return s.provider.AuthCodeURL(state, pkceVerifier), nil
}

// Callback はIdPからのリダイレクトを処理する。
// 退避済みの認可状態をread-onceで取り出すため、同じコールバックの
// リプレイは必ずErrSessionExpiredになる。
// 成功時は検証済みIdentityと退避されていたreturnPathを返す。
func (s *Service) Callback(ctx context.Context, sessionID, state, code string) (*model.Identity, string, error) {
	pending, err := s.sessions.TakePendingAuth(ctx, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to take pending authorization: %w", err)
	}
	if pending == nil {
		return nil, "", ErrSessionExpired
	}

	if subtle.ConstantTimeCompare([]byte(pending.State), []byte(state)) != 1 {
		slog.Warn("state mismatch on callback", slog.String("session_id", sessionID))
		return nil, "", ErrStateMismatch
	}

	token, err := s.provider.Exchange(ctx, code, pending.PKCEVerifier)
	if err != nil {
		slog.Error("code exchange failed", slog.String("session_id", sessionID), slog.Any("error", err))
		return nil, "", ErrUpstreamExchange
	}

	identity, err := s.verifier.Verify(token)
	if err != nil {
		// 交換で得たトークンが検証を通らないのはユーザー向けの
		// ログイン失敗であってサーバーエラーではない。
		slog.Warn("token verification failed after exchange",
			slog.String("session_id", sessionID),
			slog.String("reason", err.Error()),
		)
		return nil, "", ErrLoginRejected
	}

	if err := s.credentials.Upsert(ctx, identity.ID, token); err != nil {
		return nil, "", fmt.Errorf("failed to save credential: %w", err)
	}

	if err := s.sessions.SetIdentity(ctx, sessionID, identity.ID); err != nil {
		return nil, "", fmt.Errorf("failed to bind session to identity: %w", err)
	}

	slog.Info("login succeeded", slog.String("identity_id", identity.ID))

	return identity, pending.ReturnPath, nil
}

// Resolve は保存済みトークンからIdentityを再解決する。
// トークンが未保存、または期限切れ・鍵ローテーションで検証を通らない
// 場合は(nil, nil)を返す。呼び出し元は再ログインを促すこと。
func (s *Service) Resolve(ctx context.Context, identityID string) (*model.Identity, error) {
	token, err := s.credentials.FindToken(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	identity, err := s.verifier.Verify(token)
	if err != nil {
		slog.Debug("stored token no longer verifies",
			slog.String("identity_id", identityID),
			slog.String("reason", err.Error()),
		)
		return nil, nil
	}

	return identity, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// generateState は暗号的に安全なCSRFトークンを生成する。
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
